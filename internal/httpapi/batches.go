package httpapi

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"artwink/internal/artwork"
	"artwink/internal/studio"
)

func (s *Server) openBatch(c *gin.Context) {
	c.JSON(http.StatusCreated, s.Artworks.Batches().Open())
}

func (s *Server) getBatch(c *gin.Context) {
	b, err := s.Artworks.Batches().Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) discardBatch(c *gin.Context) {
	n, err := s.Artworks.Batches().Discard(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": n})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) addFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		s.respondError(c, studio.Invalid("files", "Please select at least one image."))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		s.respondError(c, studio.Invalid("files", "Please select at least one image."))
		return
	}
	srcs := make([]artwork.Source, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			s.respondError(c, &studio.IOError{Op: "read upload", File: fh.Filename, Err: err})
			return
		}
		srcs = append(srcs, artwork.Source{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	res, err := s.Artworks.AddFiles(c.Request.Context(), c.Param("id"), srcs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) removeFile(c *gin.Context) {
	b, err := s.Artworks.Batches().Remove(c.Param("id"), c.Param("previewId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) preview(c *gin.Context) {
	p, err := s.Artworks.Batches().Preview(c.Param("id"), c.Param("previewId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, p.ContentType, p.Data)
}

func (s *Server) toggleStudent(c *gin.Context) {
	b, err := s.Artworks.Batches().Toggle(c.Param("id"), c.Param("studentId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) submitBatch(c *gin.Context) {
	rep, err := s.Artworks.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
