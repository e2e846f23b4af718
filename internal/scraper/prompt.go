package scraper

import "strings"

const extractionPrompt = `You are a web scraper tasked with extracting product information from a given webpage. Determine whether the page is a product page and, if so, extract the product name, price, and currency. Respond in this JSON format:
{
  "is_trackable": true or false,
  "product_name": "name of the product" or null,
  "price": numeric price value or null,
  "currency": "currency symbol" or null
}
Rules:
1. For product pages:
   - Set "is_trackable" to true
   - Extract "product_name" from the page
   - Extract the numeric "price" (remove commas, spaces, and any non-numeric characters except the decimal point)
   - Extract the "currency" symbol (₹, $, €, etc.)
2. For any other page:
   - Set "is_trackable" to false
   - Set all other fields to null
3. Price formatting:
   - Convert "1,999" to 1999
   - Convert "1,99,999" to 199999
   - Keep decimals if present (1999.99)
   - Remove any currency symbols from the price field

Only respond with the JSON, no other text.`

// buildPrompt combines the extraction instructions with the page.
func buildPrompt(url, pageText string) string {
	var sb strings.Builder
	sb.Grow(len(extractionPrompt) + len(pageText) + len(url) + 64)
	sb.WriteString(extractionPrompt)
	sb.WriteString("\n\nPage URL: ")
	sb.WriteString(url)
	sb.WriteString("\n\nPage content:\n")
	sb.WriteString(pageText)
	return sb.String()
}
