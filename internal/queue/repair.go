package queue

import (
	"encoding/json"
	"fmt"
)

// TypeCounterAdjust marks a remaining-classes change that failed after its
// attendance record was written.
const TypeCounterAdjust = "counter.adjust"

// CounterAdjust is the body of a TypeCounterAdjust message.
type CounterAdjust struct {
	StudentID string `json:"studentId"`
	Delta     int    `json:"delta"`
	RecordID  string `json:"recordId"`
	Attempt   int    `json:"attempt"`
}

// NewCounterAdjust encodes a repair message.
func NewCounterAdjust(a CounterAdjust) (Message, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeCounterAdjust, Body: body}, nil
}

// DecodeCounterAdjust reads the body of a repair message.
func DecodeCounterAdjust(msg Message) (CounterAdjust, error) {
	if msg.Type != TypeCounterAdjust {
		return CounterAdjust{}, fmt.Errorf("queue: unexpected message type %q", msg.Type)
	}
	var a CounterAdjust
	if err := json.Unmarshal(msg.Body, &a); err != nil {
		return CounterAdjust{}, fmt.Errorf("queue: decode counter adjust: %w", err)
	}
	if a.StudentID == "" || a.Delta == 0 {
		return CounterAdjust{}, fmt.Errorf("queue: empty counter adjust")
	}
	return a, nil
}
