package analyzer

import "fmt"

// systemPromptTradeAnalysis instructs the model to return the
// recommendation payload as strict JSON.
const systemPromptTradeAnalysis = `You are a trading analyst for a transparent, profit-redistributing paper-trading bot. Analyze the provided market opportunity and give a clear recommendation.

Your response must be valid JSON with this structure:
{
  "recommendation": "BUY" | "SELL" | "HOLD",
  "confidence": 0-10,
  "position_size_fraction": 0.0-1.0,
  "reason": "brief explanation",
  "ethical_check": "pass" | "fail"
}

Be conservative with confidence scores. Only suggest high confidence (>7) when momentum, volume and volatility align.
Set ethical_check to "fail" for instruments tied to extractive or exploitative markets.`

// buildOpportunityPrompt renders one opportunity for analysis.
func buildOpportunityPrompt(symbol, name, marketClass string, price, change, volume, volatility float64) string {
	prompt := fmt.Sprintf(`Analyze this trading opportunity:

Symbol: %s
Market: %s
Current Price: $%.6f
Change: %.2f%%
Volume: %.2f
Volatility: %.2f%%

Consider risk level, potential reward, market conditions and ethical implications. Respond with the JSON structure only.`,
		symbol, marketClass, price, change, volume, volatility)

	if name != "" {
		prompt += fmt.Sprintf("\nMarket name: %s", name)
	}

	return prompt
}
