package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"solarpunk-alphabot/internal/redistribute"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.botAPI.Status())
}

func (s *Server) handleTrades(c *gin.Context) {
	trades := s.botAPI.Trades()
	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"count":  len(trades),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	positions := s.botAPI.Positions()
	c.JSON(http.StatusOK, gin.H{
		"positions": positions,
		"count":     len(positions),
	})
}

func (s *Server) handleDistributions(c *gin.Context) {
	records := s.botAPI.Distributions()
	c.JSON(http.StatusOK, gin.H{
		"distributions": records,
		"count":         len(records),
	})
}

// handleImpact aggregates what the bot has given away so far, per
// recipient organization.
func (s *Server) handleImpact(c *gin.Context) {
	records := s.botAPI.Distributions()

	type orgImpact struct {
		Name      string `json:"name"`
		Total     string `json:"total"`
		Donations int    `json:"donations"`
	}

	totals := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, record := range records {
		for _, alloc := range record.Allocations {
			if alloc.RecipientClass != redistribute.ClassCrisis {
				continue
			}
			totals[alloc.RecipientID] = totals[alloc.RecipientID].Add(alloc.Amount)
			counts[alloc.RecipientID]++
		}
	}

	organizations := make([]orgImpact, 0, len(totals))
	for name, total := range totals {
		organizations = append(organizations, orgImpact{
			Name:      name,
			Total:     total.StringFixed(2),
			Donations: counts[name],
		})
	}
	sort.Slice(organizations, func(i, j int) bool {
		return organizations[i].Name < organizations[j].Name
	})

	c.JSON(http.StatusOK, gin.H{
		"total_donated": s.botAPI.TotalDonated().StringFixed(2),
		"distributions": len(records),
		"organizations": organizations,
	})
}

func (s *Server) handleTriggerCycle(c *gin.Context) {
	s.botAPI.TriggerCycle()
	c.JSON(http.StatusAccepted, gin.H{"status": "cycle triggered"})
}
