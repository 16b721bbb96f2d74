// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/money"
	"github.com/your-org/warehouse-quote-assistant/internal/quote"
	"github.com/your-org/warehouse-quote-assistant/internal/resilience"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errInvalidForm = errors.New("invalid form")

// GenerateForm is the quotation form as posted by the page.
type GenerateForm struct {
	StorageType string  `form:"storage_type"`
	Volume      float64 `form:"volume"`
	Days        int     `form:"days"`
	WMS         string  `form:"wms"`
	Email       string  `form:"email"`
}

// Request converts the form into a quotation request. Only "Yes" selects
// WMS.
func (f GenerateForm) Request() quote.Request {
	return quote.Request{
		Category:   strings.TrimSpace(f.StorageType),
		Volume:     f.Volume,
		Days:       f.Days,
		IncludeWMS: strings.EqualFold(strings.TrimSpace(f.WMS), "yes"),
		Contact:    strings.TrimSpace(f.Email),
	}
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// CategoryView describes a category for the form and /api/categories.
type CategoryView struct {
	Label       string `json:"label"`
	Unit        string `json:"unit"`
	Period      string `json:"period"`
	Rate        string `json:"rate"`
	RateDisplay string `json:"rate_display"`
	Yard        bool   `json:"yard"`
}

func (s *Server) categoryViews() ([]CategoryView, string) {
	table := s.Calculator().Table()
	cats := table.Categories()
	views := make([]CategoryView, 0, len(cats))
	for _, cat := range cats {
		views = append(views, CategoryView{
			Label:       cat.Label,
			Unit:        cat.Unit,
			Period:      string(cat.Period),
			Rate:        cat.Rate.StringFixed(2),
			RateDisplay: cat.RateDisplay(table.Currency),
			Yard:        cat.Yard,
		})
	}
	return views, table.Currency
}

func (s *Server) handleIndex(c *gin.Context) {
	views, currency := s.categoryViews()
	c.HTML(http.StatusOK, "form.html", gin.H{
		"Title":      s.title,
		"Categories": views,
		"Currency":   currency,
		"WMSFee":     money.Format(s.Calculator().WMSMonthlyFee()),
	})
}

func (s *Server) handleChatScript(c *gin.Context) {
	data, err := assets.ReadFile("assets/chatbot.js")
	if err != nil {
		s.errors.WriteErrorResponse(c.Writer, err, "loading chat script", requestID(c))
		return
	}
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", data)
}

func (s *Server) handleCategories(c *gin.Context) {
	views, currency := s.categoryViews()
	c.JSON(http.StatusOK, gin.H{
		"currency":        currency,
		"wms_monthly_fee": s.Calculator().WMSMonthlyFee().StringFixed(2),
		"categories":      views,
	})
}

func (s *Server) handleGenerate(c *gin.Context) {
	var form GenerateForm
	if err := c.ShouldBind(&form); err != nil {
		s.errors.WriteErrorResponse(c.Writer, fmt.Errorf("%w: %v", errInvalidForm, err), "reading quotation form", requestID(c))
		return
	}

	req := form.Request()
	result, err := s.Calculator().Calculate(req)
	if err != nil {
		s.errors.WriteErrorResponse(c.Writer, err, "calculating quotation", requestID(c))
		return
	}

	path, filename, err := s.filler.Generate(c.Request.Context(), result, req.Contact)
	if err != nil {
		s.errors.WriteErrorResponse(c.Writer, err, "generating quotation", requestID(c))
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to remove generated quotation", zap.String("path", path), zap.Error(err))
		}
	}()

	s.logger.Info("Quotation generated",
		zap.String("request_id", requestID(c)),
		zap.String("storage_type", result.Category),
		zap.String("total", result.Total.StringFixed(2)),
		zap.Bool("wms", result.WMSApplied),
		zap.Bool("priced", result.Priced))

	c.Header("Content-Type", xlsxContentType)
	c.FileAttachment(path, filename)
}

func (s *Server) handleQuote(c *gin.Context) {
	var req quote.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errors.WriteErrorResponse(c.Writer, fmt.Errorf("%w: %v", errInvalidForm, err), "reading quotation request", requestID(c))
		return
	}

	result, err := s.Calculator().Calculate(req)
	if err != nil {
		s.errors.WriteErrorResponse(c.Writer, err, "calculating quotation", requestID(c))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleNotFound(c *gin.Context) {
	err := resilience.NewNotFoundError(
		fmt.Sprintf("No route for %s %s", c.Request.Method, c.Request.URL.Path), nil)
	s.errors.WriteErrorResponse(c.Writer, err, "routing request", requestID(c))
}

// handleChat always answers 200; an unreadable body is treated as an empty
// message.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Unreadable chat request", zap.Error(err))
	}

	reply := s.chat.Reply(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, reply)
}
