package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/cloudlab/internal/imagegen"
	"github.com/nao1215/cloudlab/internal/model"
	"github.com/nao1215/cloudlab/internal/pipeline"
	"github.com/nao1215/cloudlab/internal/speech"
	"github.com/nao1215/cloudlab/internal/summarize"
)

// errMissingFile is returned when a multipart upload has no "file" part.
var errMissingFile = errors.New(`multipart field "file" is required`)

func (s *Server) respond(c *gin.Context, res *model.Result, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("X-Request-Id", res.RequestID)
	c.JSON(http.StatusOK, res)
}

// readUpload returns the name and content of the "file" part.
func readUpload(c *gin.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", errMissingFile, err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func (s *Server) detect(c *gin.Context) {
	name, data, err := readUpload(c)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.runner.Detect(c.Request.Context(), pipeline.DetectInput{Name: name, Image: data})
	s.respond(c, res, err)
}

func (s *Server) transcribe(c *gin.Context) {
	name, data, err := readUpload(c)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.runner.Transcribe(c.Request.Context(), name, bytes.NewReader(data))
	s.respond(c, res, err)
}

func (s *Server) translate(c *gin.Context) {
	var in pipeline.TranslateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.runner.Translate(c.Request.Context(), in)
	s.respond(c, res, err)
}

// summarizeRequest is the JSON body of /summarize. Length and audience
// are names such as "Very Brief" or "technical".
type summarizeRequest struct {
	Text      string `json:"text"`
	URL       string `json:"url"`
	Length    string `json:"length"`
	Audience  string `json:"audience"`
	Reduction int    `json:"reduction"`
}

func (r summarizeRequest) options() (summarize.Options, error) {
	return summarize.ParseOptions(r.Length, r.Audience, r.Reduction)
}

func (s *Server) summarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.runner.Summarize(c.Request.Context(), pipeline.SummarizeInput{Text: req.Text, URL: req.URL, Options: opts})
	s.respond(c, res, err)
}

// speak answers with the audio bytes. The audio is buffered so that a
// failure can still be reported as JSON.
func (s *Server) speak(c *gin.Context) {
	var req speech.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	var buf bytes.Buffer
	eff, err := s.runner.SpeakTo(c.Request.Context(), req, &buf)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="speech_%s.%s"`, eff.Voice, eff.Format))
	c.Data(http.StatusOK, speech.ContentType(eff.Format), buf.Bytes())
}

func (s *Server) imagine(c *gin.Context) {
	var req imagegen.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	res, err := s.runner.Imagine(c.Request.Context(), req)
	s.respond(c, res, err)
}
