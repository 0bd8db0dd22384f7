package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"artwink/internal/auth"
	"artwink/internal/guard"
	"artwink/internal/metrics"
	"artwink/internal/studio"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindErr(err))
		return
	}
	res, err := s.Gate.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		code := "validation"
		var aerr *studio.AuthError
		if errors.As(err, &aerr) {
			code = aerr.Code
		}
		metrics.SignInFailures.WithLabelValues(code).Inc()
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      res.Token.Value,
		"role":       res.Session.Role,
		"expires_at": res.Token.ExpiresAt.Unix(),
		"home":       guard.Home(res.Session.Role),
		"profile":    res.Profile,
	})
}

func (s *Server) logout(c *gin.Context) {
	s.Gate.SignOut(auth.SessionOf(c))
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

func (s *Server) me(c *gin.Context) {
	sess := auth.SessionOf(c)
	profile, err := s.Gate.Profile(c.Request.Context(), sess)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "profile": profile})
}

func (s *Server) navigate(c *gin.Context) {
	role := auth.SessionOf(c).EffectiveRole()
	c.JSON(http.StatusOK, gin.H{"role": role, "decision": guard.Navigate(c.Query("path"), role)})
}
