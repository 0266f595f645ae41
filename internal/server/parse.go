package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
)

type textRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type parseResponse struct {
	Order            any                 `json:"order"`
	Lines            []entity.Line       `json:"lines"`
	Warnings         []string            `json:"warnings"`
	DocumentType     string              `json:"document_type"`
	SplitOrders      []entity.SplitOrder `json:"split_orders"`
	HasMultipleDates bool                `json:"has_multiple_dates"`
	DocumentID       string              `json:"document_id"`
	ModelName        string              `json:"model_name"`
	ModelConfidence  float64             `json:"model_confidence"`
}

const (
	msgOnlyPDF      = "Only PDF files are supported"
	msgNoInput      = "Either a PDF file or text must be provided"
	msgTextRequired = "Text content is required"
)

// readInput accepts a multipart upload (field "file", or "text"/"text_form")
// or a JSON body {"text"}. The model override comes from the "model" field or
// query parameter.
func (h *handler) readInput(c *gin.Context) (pipeline.Input, error) {
	in := pipeline.Input{TriggeredBy: constants.TriggeredByAPI, ModelOverride: strings.TrimSpace(c.Query("model"))}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if v := strings.TrimSpace(c.PostForm("model")); v != "" {
			in.ModelOverride = v
		}
		fh, err := c.FormFile("file")
		if err == nil {
			if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
				return in, common.InvalidInput(msgOnlyPDF)
			}
			f, err := fh.Open()
			if err != nil {
				return in, common.WrapError(err, "open upload")
			}
			defer f.Close()
			data, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
			if err != nil {
				return in, common.WrapError(err, "read upload")
			}
			if int64(len(data)) > h.MaxUploadBytes {
				return in, common.InvalidInput(fmt.Sprintf("File exceeds %d MB", h.MaxUploadBytes>>20))
			}
			name := fh.Filename
			in.InputType, in.Data, in.SourceName = constants.InputPDF, data, &name
			return in, nil
		}
		text := c.PostForm("text")
		if strings.TrimSpace(text) == "" {
			text = c.PostForm("text_form")
		}
		if strings.TrimSpace(text) == "" {
			return in, common.InvalidInput(msgNoInput)
		}
		in.InputType, in.Data = constants.InputText, []byte(text)
		return in, nil
	}

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return in, common.InvalidInput(msgNoInput)
	}
	if req.Model != "" {
		in.ModelOverride = req.Model
	}
	in.InputType, in.Data = constants.InputText, []byte(req.Text)
	return in, nil
}

// readText accepts only a JSON body {"text"}.
func readText(c *gin.Context) (pipeline.Input, error) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return pipeline.Input{}, common.InvalidInput(msgTextRequired)
	}
	in := pipeline.TextInput(req.Text)
	in.TriggeredBy = constants.TriggeredByAPI
	in.ModelOverride = req.Model
	return in, nil
}

func (h *handler) parse(c *gin.Context) {
	in, err := h.readInput(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.runParse(c, in, "Error processing order")
}

func (h *handler) parseText(c *gin.Context) {
	in, err := readText(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.runParse(c, in, "Error processing text")
}

func (h *handler) runParse(c *gin.Context, in pipeline.Input, failure string) {
	out, err := h.Runner.Run(c.Request.Context(), in)
	if err != nil {
		h.logger.Error("http.parse.failed", "request_id", c.GetString("request_id"), "error", err)
		detail(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", failure, err))
		return
	}
	c.JSON(http.StatusOK, toParseResponse(out))
}

func toParseResponse(out pipeline.Output) parseResponse {
	resp := parseResponse{
		Order:            gin.H{},
		Lines:            []entity.Line{},
		Warnings:         out.Warnings,
		DocumentType:     out.DocumentType,
		SplitOrders:      out.SplitOrders,
		HasMultipleDates: out.HasMultipleDates,
		DocumentID:       out.DocumentID,
		ModelName:        out.ModelID,
		ModelConfidence:  out.Detection.Confidence,
	}
	if res := out.Legacy.Result; res != nil {
		resp.Order = res.Order
		if res.Lines != nil {
			resp.Lines = res.Lines
		}
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if resp.SplitOrders == nil {
		resp.SplitOrders = []entity.SplitOrder{}
	}
	if resp.DocumentType == "" {
		resp.DocumentType = "unknown"
	}
	return resp
}
