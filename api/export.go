package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"drxchat/middleware"
	"drxchat/models"
	"drxchat/storage"
)

const timeLayout = "2006-01-02 15:04:05"

var exportHeaders = []string{"ID", "Sender", "Content", "Model", "Execution Time (ms)", "Created At"}

// ExportHandler 会话导出处理器
type ExportHandler struct {
	store storage.Storage
	log   *zap.Logger
}

// NewExportHandler 创建导出处理器
func NewExportHandler(store storage.Storage, log *zap.Logger) *ExportHandler {
	return &ExportHandler{store: store, log: log}
}

// ChatExport JSON 导出内容
type ChatExport struct {
	Chat     *models.Chat     `json:"chat"`
	Messages []models.Message `json:"messages"`
}

// Export 导出会话记录
// @Summary 导出会话
// @Description 导出会话及全部消息，支持 json、csv、xlsx
// @Tags 会话
// @Produce json
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param chatId path int true "会话ID"
// @Param format query string false "导出格式" Enums(json, csv, xlsx) default(json)
// @Success 200 {object} ChatExport
// @Failure 400 {object} Response "参数错误"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/chats/{chatId}/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" && format != "xlsx" {
		BadRequest(c, "Unsupported export format")
		return
	}

	ctx := c.Request.Context()
	log := middleware.GetLogger(c, h.log)
	chat, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		respondError(c, log, err, "Chat not found")
		return
	}
	messages, err := h.store.GetMessagesByChat(ctx, chatID)
	if err != nil {
		respondError(c, log, err, "Failed to export chat")
		return
	}

	filename := fmt.Sprintf("chat_%d.%s", chatID, format)
	var (
		data        []byte
		contentType string
	)
	switch format {
	case "csv":
		data, err = transcriptCSV(messages)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		data, err = transcriptXLSX(chat, messages)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.JSON(http.StatusOK, ChatExport{Chat: chat, Messages: messages})
		return
	}
	if err != nil {
		respondError(c, log, err, "Failed to export chat")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

func messageRow(m models.Message) []string {
	model, elapsed := "", ""
	if m.ModelUsed != nil {
		model = *m.ModelUsed
	}
	if m.ExecutionTime != nil {
		elapsed = strconv.FormatInt(*m.ExecutionTime, 10)
	}
	return []string{
		strconv.FormatUint(uint64(m.ID), 10),
		string(m.Sender),
		m.Content,
		model,
		elapsed,
		m.CreatedAt.Format(timeLayout),
	}
}

func transcriptCSV(messages []models.Message) ([]byte, error) {
	buf := new(bytes.Buffer)
	// BOM 让 Excel 正确识别 UTF-8（阿拉伯语内容）
	buf.WriteString("\xEF\xBB\xBF")

	w := csv.NewWriter(buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, err
	}
	for _, m := range messages {
		if err := w.Write(messageRow(m)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func transcriptXLSX(chat *models.Chat, messages []models.Message) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Chat"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, err
	}

	_ = f.SetColWidth(sheet, "A", "B", 10)
	_ = f.SetColWidth(sheet, "C", "C", 80)
	_ = f.SetColWidth(sheet, "D", "F", 20)

	// 第一行为会话标题
	if err := f.SetCellValue(sheet, "A1", chat.Title); err != nil {
		return nil, err
	}
	if err := f.MergeCell(sheet, "A1", "F1"); err != nil {
		return nil, err
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, "A2", "F2", headerStyle); err != nil {
		return nil, err
	}

	for i, m := range messages {
		row := i + 3
		for col, value := range messageRow(m) {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), wrapStyle); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
