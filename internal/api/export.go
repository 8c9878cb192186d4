package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/libtrack/libtrack-server/internal/repository"
	"github.com/xuri/excelize/v2"
)

// ExportPenalties handles GET /api/penalties/export, streaming the current
// penalty list as an xlsx workbook for offline reporting.
func (h *Handler) ExportPenalties(c *gin.Context) {
	filter := repository.PenaltyFilter{
		Status:   c.Query("status"),
		UserID:   c.Query("user_id"),
		Page:     1,
		PageSize: 100,
	}

	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Penalties"
	file.SetSheetName("Sheet1", sheet)

	headers := []string{"Penalty ID", "Transaction ID", "User ID", "Fine", "Status", "Payment Method", "Waived By", "Updated At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheet, cell, header)
	}

	row := 2
	for {
		resp, err := h.svc.ListPenalties(c.Request.Context(), filter)
		if err != nil {
			h.internalError(c, err)
			return
		}

		for _, p := range resp.Penalties {
			values := []interface{}{
				p.PenaltyID,
				p.TransactionID,
				p.UserID,
				p.Fine.StringFixed(2),
				p.Status,
				p.PaymentMethod.String,
				p.WaivedBy.String,
				p.UpdatedAt.Format(time.RFC3339),
			}
			for i, value := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				file.SetCellValue(sheet, cell, value)
			}
			row++
		}

		if filter.Page >= resp.Pagination.TotalPages {
			break
		}
		filter.Page++
	}

	filename := fmt.Sprintf("penalties-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		h.logger.Error("Failed to write penalties export: %v", err)
	}
}
