package timeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// domainSequence separates sequence fingerprints from any other hash.
const domainSequence = "stimline/sequence/v1"

// Fingerprint hashes the id-independent structure of a compiled sequence.
//
// Freshly generated step and trigger ids are excluded, so two compiles of
// the same authored timeline under the same seed share a fingerprint even
// when ids come from a UUID generator. Template ids, types, order, blocks and
// trigger bindings are included. Block ids of synthetic steps are generated
// and excluded too.
func Fingerprint(steps []Step) (string, error) {
	shape := make([]map[string]any, len(steps))
	for i, s := range steps {
		blocks := make([]map[string]any, len(s.Metadata.Blocks))
		for j, b := range s.Metadata.Blocks {
			triggers := make([]map[string]any, len(b.Triggers))
			for k, tr := range b.Triggers {
				triggers[k] = map[string]any{"metadata": tr.Metadata}
				if s.Scored() {
					triggers[k]["stimulusId"] = tr.StimulusID
				}
			}
			blocks[j] = map[string]any{
				"type":     b.Type,
				"data":     b.Data,
				"triggers": triggers,
			}
			if s.Scored() {
				blocks[j]["id"] = b.ID
			}
		}
		shape[i] = map[string]any{
			"templateId": s.TemplateID,
			"groupingId": s.GroupingID,
			"orderIndex": s.OrderIndex,
			"type":       s.Type,
			"synthetic":  s.Synthetic,
			"title":      s.Metadata.Title,
			"config":     s.Metadata.StimuliConfig,
			"blocks":     blocks,
		}
	}

	canonical, err := MarshalCanonical(shape)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(domainSequence))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
