package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcelsud/storesync/webhook"
	"github.com/rs/zerolog"
)

// CommerceTopics maps every commerce platform topic handled to the entity it updates
var CommerceTopics = map[string]Kind{
	"orders/create":           Orders,
	"orders/updated":          Orders,
	"orders/paid":             Orders,
	"products/create":         Products,
	"products/update":         Products,
	"customers/create":        Customers,
	"inventory_levels/update": Inventory,
}

// RegisterCommerce binds the commerce platform topics to m
func RegisterCommerce(r *webhook.Router, m Mirror, logger zerolog.Logger) {
	for topic, kind := range CommerceTopics {
		r.Register(topic, mirrorHandler(kind, m, logger))
	}
}

func mirrorHandler(kind Kind, m Mirror, logger zerolog.Logger) webhook.Handler {
	return webhook.HandlerFunc(func(ctx context.Context, d webhook.Delivery) error {
		id, err := entityID(kind, d.Payload)
		if err != nil {
			return err
		}

		rec := Record{
			Kind:      kind,
			ID:        id,
			Topic:     d.Topic,
			Data:      d.Payload,
			UpdatedAt: d.ReceivedAt,
		}
		if err := m.Put(ctx, rec); err != nil {
			return fmt.Errorf("mirroring %s %s: %w", kind, id, err)
		}

		logger.Info().Str("topic", d.Topic).Str("kind", string(kind)).Str("id", id).Msg("mirrored")
		return nil
	})
}

// entityID extracts the platform id; inventory levels are keyed by item and location
func entityID(kind Kind, body json.RawMessage) (string, error) {
	var doc struct {
		ID              json.RawMessage `json:"id"`
		InventoryItemID json.RawMessage `json:"inventory_item_id"`
		LocationID      json.RawMessage `json:"location_id"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decoding %s payload: %w", kind, err)
	}

	if kind == Inventory {
		item, loc := scalar(doc.InventoryItemID), scalar(doc.LocationID)
		if item == "" || loc == "" {
			return "", fmt.Errorf("inventory level needs inventory_item_id and location_id")
		}
		return item + ":" + loc, nil
	}

	id := scalar(doc.ID)
	if id == "" {
		return "", fmt.Errorf("%s payload has no id", kind)
	}
	return id, nil
}

// scalar renders a JSON string or number as text
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
