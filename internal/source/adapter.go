package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"camsync/internal/model"
)

// rawPushRecord is the wire shape of a push-feed message. Everything is
// optional on the wire; validation happens in ParsePushMessage so malformed
// records surface as parse errors instead of crashes downstream.
type rawPushRecord struct {
	EventID        string `json:"eventId"`
	Timestamp      string `json:"timestamp"`
	ResourceUpdate struct {
		Name   string                     `json:"name"`
		Events map[string]json.RawMessage `json:"events"`
		Traits map[string]json.RawMessage `json:"traits"`
	} `json:"resourceUpdate"`
}

// kindAliases maps raw feed tag strings onto normalized kinds. The push feed
// emits trailing segments of keys like
// "sdm.devices.events.DoorbellChime.Chime".
var kindAliases = map[string]model.EventKind{
	"chime":         model.KindChime,
	"doorbellchime": model.KindChime,
	"doorbell":      model.KindChime,
	"package":       model.KindPackage,
	"person":        model.KindPerson,
	"animal":        model.KindAnimal,
	"vehicle":       model.KindVehicle,
	"motion":        model.KindMotion,
	"sound":         model.KindSound,
	"clippreview":   model.KindClipReady,
	"clip_preview":  model.KindClipReady,
}

// ParseKind normalizes a raw feed tag. Unknown tags pass through lowercased
// so the caption formatter can still render them.
func ParseKind(raw string) model.EventKind {
	key := strings.ToLower(strings.TrimSpace(raw))
	if k, ok := kindAliases[key]; ok {
		return k
	}
	return model.EventKind(key)
}

// ParseKinds normalizes a list of raw tags, dropping empty entries.
func ParseKinds(raw []string) []model.EventKind {
	out := make([]model.EventKind, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		out = append(out, ParseKind(r))
	}
	return out
}

// ParsePushMessage validates a raw push record and normalizes it. A record
// without an event id is rejected; a missing timestamp falls back to now.
func ParsePushMessage(data []byte) (model.PushMessage, error) {
	var raw rawPushRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.PushMessage{}, fmt.Errorf("decode push record: %w", err)
	}
	if strings.TrimSpace(raw.EventID) == "" {
		return model.PushMessage{}, errors.New("push record missing eventId")
	}

	ts := time.Now().UTC()
	if raw.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, raw.Timestamp)
		}
		if err != nil {
			return model.PushMessage{}, fmt.Errorf("parse push timestamp %q: %w", raw.Timestamp, err)
		}
		ts = parsed.UTC()
	}

	var kinds []model.EventKind
	for key := range raw.ResourceUpdate.Events {
		// Keys look like "sdm.devices.events.CameraPerson.Person"; the
		// trailing segment is the tag.
		if !strings.Contains(key, ".events.") {
			continue
		}
		segs := strings.Split(key, ".")
		kinds = append(kinds, ParseKind(segs[len(segs)-1]))
	}

	return model.PushMessage{
		EventID:    raw.EventID,
		Timestamp:  ts,
		DeviceName: pushDeviceName(raw),
		Kinds:      kinds,
	}, nil
}

// pushDeviceName prefers the custom display name trait and falls back to the
// trailing segment of the resource path.
func pushDeviceName(raw rawPushRecord) string {
	if traitData, ok := raw.ResourceUpdate.Traits["sdm.devices.traits.Info"]; ok {
		var info struct {
			CustomName string `json:"customName"`
		}
		if err := json.Unmarshal(traitData, &info); err == nil && info.CustomName != "" {
			return info.CustomName
		}
	}
	name := raw.ResourceUpdate.Name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
