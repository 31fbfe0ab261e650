package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/vaultd/internal/vault"
)

// Variables holds template substitutions. JSON strings, numbers and
// booleans are accepted and converted to their text form.
type Variables map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Variables) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}

	out := make(Variables, len(raw))
	for key, value := range raw {
		switch val := value.(type) {
		case string:
			out[key] = val
		case json.Number:
			out[key] = val.String()
		case bool:
			out[key] = strconv.FormatBool(val)
		default:
			return fmt.Errorf("variable %q must be a string, number or boolean", key)
		}
	}
	*v = out
	return nil
}

// WriteFileRequest is the body of POST /api/file.
type WriteFileRequest struct {
	FilePath     string    `json:"filePath"`
	Content      string    `json:"content"`
	TemplatePath string    `json:"templatePath"`
	Append       bool      `json:"append"`
	Variables    Variables `json:"variables"`
}

// MoveFileRequest is the body of PUT /api/file.
type MoveFileRequest struct {
	SourcePath      string `json:"sourcePath"`
	DestinationPath string `json:"destinationPath"`
}

// DeleteFileRequest is the body of DELETE /api/file.
type DeleteFileRequest struct {
	FilePath string `json:"filePath"`
}

// ReadFileResponse is returned by GET /api/file.
type ReadFileResponse struct {
	Content   string   `json:"content"`
	Variables []string `json:"variables"`
}

// SuccessResponse is returned by the mutating endpoints.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Message for request bodies that fail to decode.
const msgInvalidBody = "Invalid request body"

// initFileRoutes registers the file endpoints under /api.
func (s *Server) initFileRoutes() {
	g := s.echo.Group("/api")
	g.GET("/file", s.ReadFile)
	g.POST("/file", s.WriteFile)
	g.PUT("/file", s.MoveFile)
	g.DELETE("/file", s.DeleteFile)
}

// ReadFile handles GET /api/file?filePath=...
func (s *Server) ReadFile(c echo.Context) error {
	res, err := s.vault.Read(c.Request().Context(), vault.ReadRequest{
		FilePath: c.QueryParam("filePath"),
	})
	if err != nil {
		return s.handleVaultError(c, err)
	}

	return c.JSON(http.StatusOK, ReadFileResponse{
		Content:   res.Content,
		Variables: res.Variables,
	})
}

// WriteFile handles POST /api/file.
func (s *Server) WriteFile(c echo.Context) error {
	var req WriteFileRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, msgInvalidBody, http.StatusBadRequest)
	}

	res, err := s.vault.Write(c.Request().Context(), vault.WriteRequest{
		FilePath:     req.FilePath,
		Content:      req.Content,
		TemplatePath: req.TemplatePath,
		Append:       req.Append,
		Variables:    req.Variables,
	})
	if err != nil {
		return s.handleVaultError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: res.Message})
}

// MoveFile handles PUT /api/file.
func (s *Server) MoveFile(c echo.Context) error {
	var req MoveFileRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, msgInvalidBody, http.StatusBadRequest)
	}

	res, err := s.vault.Move(c.Request().Context(), vault.MoveRequest{
		SourcePath:      req.SourcePath,
		DestinationPath: req.DestinationPath,
	})
	if err != nil {
		return s.handleVaultError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: res.Message})
}

// DeleteFile handles DELETE /api/file.
func (s *Server) DeleteFile(c echo.Context) error {
	var req DeleteFileRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, msgInvalidBody, http.StatusBadRequest)
	}

	res, err := s.vault.Delete(c.Request().Context(), vault.DeleteRequest{
		FilePath: req.FilePath,
	})
	if err != nil {
		return s.handleVaultError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: res.Message})
}
