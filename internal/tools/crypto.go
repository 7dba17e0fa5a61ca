package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"atlas-widget/internal/domain"
	"atlas-widget/internal/integrations/freecrypto"
)

const CryptoConversionName = "get_crypto_conversion"

// Converter is satisfied by *freecrypto.Client.
type Converter interface {
	GetConversion(ctx context.Context, from, to string, amount float64) (string, error)
}

// CryptoConversionTool converts between two cryptocurrencies or from a
// cryptocurrency to fiat.
type CryptoConversionTool struct {
	conv Converter
}

func NewCryptoConversionTool(conv Converter) *CryptoConversionTool {
	return &CryptoConversionTool{conv: conv}
}

var conversionParams = json.RawMessage(`{
  "type": "object",
  "properties": {
    "from_coin": {"type": "string", "description": "Symbol to convert from, e.g. BTC."},
    "to_coin": {"type": "string", "description": "Symbol to convert to, e.g. USD or ETH."},
    "amount": {"type": "number", "description": "Amount of from_coin. Defaults to 1.0."}
  },
  "required": ["from_coin", "to_coin"]
}`)

func (t *CryptoConversionTool) Def() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name: CryptoConversionName,
		Description: "Convert between any two cryptocurrencies or from crypto to fiat. " +
			`Example: from_coin="BTC", to_coin="USD", amount=0.5`,
		Parameters: conversionParams,
	}
}

type conversionArgs struct {
	FromCoin string      `json:"from_coin"`
	ToCoin   string      `json:"to_coin"`
	Amount   flexAmount `json:"amount"`
}

// flexAmount accepts 0.5 as well as "0.5"; models send both. Null and empty
// strings leave it unset.
type flexAmount struct {
	value float64
	set   bool
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if strings.TrimSpace(s) == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "amount %q", s)
	}
	*a = flexAmount{value: f, set: true}
	return nil
}

func (t *CryptoConversionTool) Run(ctx context.Context, args json.RawMessage) string {
	var a conversionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(a.FromCoin) == "" || strings.TrimSpace(a.ToCoin) == "" {
		return "Error: from_coin and to_coin are required"
	}
	amount := 1.0
	if a.Amount.set {
		amount = a.Amount.value
	}

	out, err := t.conv.GetConversion(ctx, a.FromCoin, a.ToCoin, amount)
	if err != nil {
		var statusErr *freecrypto.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Sprintf("Error from Conversion API: %d - %s", statusErr.StatusCode, statusErr.Body)
		}
		return fmt.Sprintf("Exception during conversion: %v", err)
	}
	return out
}
