package mygene

import (
	"bytes"
	"encoding/json"

	"github.com/mkoziy/genome/extractor/internal/models"
)

type queryResponse struct {
	Total int   `json:"total"`
	Hits  []hit `json:"hits"`
}

type hit struct {
	ID      string       `json:"_id"`
	Pos     positionList `json:"genomic_pos"`
	PosHG19 positionList `json:"genomic_pos_hg19"`
}

type position struct {
	Chr    string `json:"chr"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Strand int    `json:"strand"`
}

// positionList accepts a single object, a list of objects or null.
type positionList []position

func (l *positionList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '[':
		var items []position
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		var one position
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*l = positionList{one}
		return nil
	}
}

func (h hit) positions(build models.Assembly) positionList {
	if build == models.AssemblyHG19 {
		return h.PosHG19
	}
	return h.Pos
}

func (p position) genomic() models.GenomicPosition {
	out := models.GenomicPosition{Chromosome: p.Chr, Start: p.Start, End: p.End}
	switch p.Strand {
	case 1:
		out.Strand = "+"
	case -1:
		out.Strand = "-"
	}
	return out
}
