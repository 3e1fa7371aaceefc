// README: AI usage quota: a monthly per-user token allowance spent on enrichment calls.
package aiusage

import "errors"

// ErrInsufficientTokens is returned when a user has no tokens remaining for the current month.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultTokens is the number of tokens granted per month.
const DefaultTokens = 100

// monthLayout keys the lazy monthly reset.
const monthLayout = "2006-01"
