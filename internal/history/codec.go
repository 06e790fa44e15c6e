package history

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/covergen/internal/domain"
)

// storedEntry is the persisted shape. Ids and timestamps are decoded leniently
// because older writers stored numeric ids and float unix timestamps.
type storedEntry struct {
	Server       string          `json:"server"`
	CollectionID json.RawMessage `json:"library_id"`
	ItemID       json.RawMessage `json:"item_id"`
	Timestamp    json.RawMessage `json:"timestamp"`
}

func encode(entries []domain.HistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return json.Marshal(entries)
}

// decode parses a stored blob, dropping entries that cannot be interpreted, and
// re-establishes ordering and bounds. It returns how many entries were dropped.
func decode(data []byte, k key) ([]domain.HistoryEntry, int) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 1
	}

	dropped := 0
	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, r := range raw {
		var s storedEntry
		if err := json.Unmarshal(r, &s); err != nil {
			dropped++
			continue
		}
		itemID, ok := lenientString(s.ItemID)
		if !ok || itemID == "" {
			dropped++
			continue
		}
		ts, ok := lenientTime(s.Timestamp)
		if !ok {
			dropped++
			continue
		}
		collection, ok := lenientString(s.CollectionID)
		if !ok {
			collection = k.collection
		}
		server := s.Server
		if server == "" {
			server = k.server
		}
		entries = append(entries, domain.HistoryEntry{
			Server:       server,
			CollectionID: collection,
			ItemID:       itemID,
			Timestamp:    ts,
		})
	}
	before := len(entries)
	entries = normalize(entries)
	return entries, dropped + (before - len(entries))
}

func lenientString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func lenientTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err == nil {
		return t, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			sec := int64(f)
			return time.Unix(sec, int64((f-float64(sec))*1e9)), true
		}
	}
	return time.Time{}, false
}
