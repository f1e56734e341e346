package reports

import (
	"fmt"
	"strings"
)

// companyPlaceholder marks where the company identity is substituted into the
// analysis prompt.
const companyPlaceholder = "[COMPANY_NAME]"

// analysisPrompt is the fixed research briefing sent to the model for every
// report. The placeholder is replaced with "Name (TICKER)".
const analysisPrompt = `I'm analyzing [COMPANY_NAME] as a potential long-term investment (20+ year horizon). Please provide a comprehensive business intelligence report covering:

**BUSINESS MODEL DEEP DIVE**
1. What exactly does this company do? Explain their business in simple terms
2. What products/services do they offer? List main offerings and revenue generators
3. How do they make money? Break down revenue streams and pricing models
4. Who are their customers? What types of companies/consumers buy from them
5. What's their value proposition? Why do customers choose them over alternatives

**COMPETITIVE ADVANTAGES & MARKET POSITION**
1. What is their competitive moat? (Strong brand, network effects, switching costs, scale, etc.)
2. Do they have genuine pricing power? Can they raise prices without losing customers?
3. Who are their main competitors and how do they compare in market position?
4. What makes this company unique or difficult to replicate?

**FINANCIAL QUALITY METRICS**
1. Profit margins - Are gross, operating, and net margins high and stable?
2. Revenue & earnings growth - Are both growing consistently over past 5 years?
3. Free cash flow - Is FCF generation strong, growing, and consistent?
4. Balance sheet strength - Debt levels, cash position, overall financial health
5. Return on invested capital - Is ROIC consistently above 15%?

**MANAGEMENT TEAM ASSESSMENT**
1. CEO profile and track record
2. Leadership team credentials and experience
3. Management compensation and shareholder alignment
4. Capital allocation decisions and track record

**GROWTH SUSTAINABILITY**
1. What are clear prospects for sustainable future growth?
2. Can they fund growth internally or depend on external financing?
3. Are growth plans realistic and achievable?

**MAJOR RISK ASSESSMENT**
What are the top 3 risks that could cause this stock to decline significantly?

**INVESTMENT RECOMMENDATION**
Provide a clear BUY/HOLD/SELL recommendation with reasoning.

**STRENGTHS & CONCERNS**
List 3-5 key strengths and 2-3 main concerns.

Please structure this as a professional investment research report.`

// BuildPrompt renders the analysis prompt for a company. The ticker is always
// shown upper-cased regardless of request casing.
func BuildPrompt(companyName, ticker string) string {
	identity := fmt.Sprintf("%s (%s)", companyName, strings.ToUpper(ticker))
	return strings.Replace(analysisPrompt, companyPlaceholder, identity, 1)
}
