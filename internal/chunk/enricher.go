package chunk

import (
	"encoding/json"
	"strconv"
)

// AttachEntities copies each file's extracted entities into the metadata of
// every chunk of that file. Attachment is whole-file: a chunk carries the
// file's full entity list even when its line range overlaps none of them.
// Chunks of files without entities are left untouched.
func AttachEntities(chunks []*Chunk, entitiesByFile map[string][]Entity) {
	for _, c := range chunks {
		entities := entitiesByFile[c.FilePath]
		if len(entities) == 0 {
			continue
		}

		data, err := json.Marshal(entities)
		if err != nil {
			continue
		}

		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		c.Metadata[MetaEntities] = string(data)
		c.Metadata[MetaEntityCount] = strconv.Itoa(len(entities))
		c.Metadata[MetaHasIntelligence] = "true"
	}
}
