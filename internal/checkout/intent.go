package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	intentVersion = 1

	// Gateway metadata values are limited to 500 characters and 50 keys.
	metadataChunk  = 500
	maxChunks      = 40
	metadataPrefix = "intent_"
)

// Line is one intended order: the price is the discounted unit price quoted
// at checkout, which is what the customer pays.
type Line struct {
	ProductID string `json:"p"`
	SellerID  string `json:"s"`
	Quantity  int    `json:"q"`
	UnitPrice int64  `json:"u"`
}

// Intent describes the orders a checkout session will create once paid.
type Intent struct {
	Version    int    `json:"v"`
	CustomerID string `json:"c"`
	Address    string `json:"a"`
	Lines      []Line `json:"l"`
}

// EncodeIntent splits the serialized intent over intent_0..intent_n keys.
func EncodeIntent(in Intent) (map[string]string, error) {
	in.Version = intentVersion
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	md := make(map[string]string)
	for i := 0; len(s) > 0; i++ {
		if i == maxChunks {
			return nil, fmt.Errorf("checkout intent too large: %d bytes", len(b))
		}
		end := metadataChunk
		if end >= len(s) {
			end = len(s)
		} else {
			// chunks must stay valid UTF-8: never cut inside a rune
			for end > 0 && !utf8.RuneStart(s[end]) {
				end--
			}
		}
		md[metadataPrefix+strconv.Itoa(i)] = s[:end]
		s = s[end:]
	}
	return md, nil
}

// DecodeIntent reassembles and validates an intent from session metadata.
func DecodeIntent(md map[string]string) (Intent, error) {
	var sb strings.Builder
	for i := 0; ; i++ {
		part, ok := md[metadataPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		sb.WriteString(part)
	}
	if sb.Len() == 0 {
		return Intent{}, errors.New("session carries no checkout intent")
	}

	dec := json.NewDecoder(strings.NewReader(sb.String()))
	dec.DisallowUnknownFields()
	var in Intent
	if err := dec.Decode(&in); err != nil {
		return Intent{}, fmt.Errorf("decode checkout intent: %w", err)
	}
	if in.Version != intentVersion {
		return Intent{}, fmt.Errorf("unsupported checkout intent version %d", in.Version)
	}
	if in.CustomerID == "" || len(in.Lines) == 0 {
		return Intent{}, errors.New("checkout intent has no customer or no lines")
	}
	for i, l := range in.Lines {
		if l.ProductID == "" || l.SellerID == "" || l.Quantity <= 0 || l.UnitPrice < 0 {
			return Intent{}, fmt.Errorf("checkout intent line %d is invalid", i)
		}
	}
	return in, nil
}
