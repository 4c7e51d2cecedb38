package output

import (
	"encoding/json"
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// records encodes each row of df as a JSON object.
func records(df dataframe.DataFrame) ([][]byte, error) {
	rows := df.Maps()
	out := make([][]byte, 0, len(rows))
	for i, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encoding row %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
