package vectorstore

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys shared between write and read paths.
const (
	keyContent       = "content"
	keyFilename      = "filename"
	keyChunkIndex    = "chunk_index"
	keyTotalChunks   = "total_chunks"
	keyContentHash   = "content_hash"
	keyContentType   = "content_type"
	keyChapter       = "chapter"
	keyChapterNumber = "chapter_number"
)

// payloadToQdrant converts the typed payload into Qdrant values.
func payloadToQdrant(p Payload) map[string]*qdrant.Value {
	out := map[string]*qdrant.Value{
		keyContent:     stringValue(p.Content),
		keyFilename:    stringValue(p.Filename),
		keyChunkIndex:  intValue(p.ChunkIndex),
		keyTotalChunks: intValue(p.TotalChunks),
		keyContentHash: stringValue(p.ContentHash),
		keyContentType: stringValue(p.ContentType),
	}
	if p.Chapter != "" {
		out[keyChapter] = stringValue(p.Chapter)
		out[keyChapterNumber] = intValue(p.ChapterNumber)
	}
	for k, v := range p.Extra {
		out[k] = stringValue(v)
	}
	return out
}

// payloadFromQdrant converts Qdrant values back into the typed payload.
// Unknown string keys are preserved in Extra.
func payloadFromQdrant(values map[string]*qdrant.Value) Payload {
	var p Payload
	for k, v := range values {
		switch k {
		case keyContent:
			p.Content = v.GetStringValue()
		case keyFilename:
			p.Filename = v.GetStringValue()
		case keyChunkIndex:
			p.ChunkIndex = int(v.GetIntegerValue())
		case keyTotalChunks:
			p.TotalChunks = int(v.GetIntegerValue())
		case keyContentHash:
			p.ContentHash = v.GetStringValue()
		case keyContentType:
			p.ContentType = v.GetStringValue()
		case keyChapter:
			p.Chapter = v.GetStringValue()
		case keyChapterNumber:
			p.ChapterNumber = int(v.GetIntegerValue())
		default:
			if s := v.GetStringValue(); s != "" {
				if p.Extra == nil {
					p.Extra = make(map[string]string)
				}
				p.Extra[k] = s
			}
		}
	}
	return p
}

// filterToQdrant builds an exact-match payload filter. Nil or empty
// filters return nil (no filtering).
func filterToQdrant(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	var conditions []*qdrant.Condition
	if f.Filename != "" {
		conditions = append(conditions, keywordCondition(keyFilename, f.Filename))
	}
	if f.ContentHash != "" {
		conditions = append(conditions, keywordCondition(keyContentHash, f.ContentHash))
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(i)}}
}

// pointIDString renders a Qdrant point id as a string.
func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch pid := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return pid.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", pid.Num)
	}
	return ""
}
