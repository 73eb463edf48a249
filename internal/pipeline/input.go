package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/paulyokota/feedforward/internal/model"
)

// LoadRecords reads theme records from a JSON export file, or from
// stdin when path is "-". Records that fail validation are skipped and
// reported; one malformed record never blocks the batch.
func LoadRecords(path string) ([]model.ThemeRecord, []error, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}

	records, skipped := model.ParseRecords(data)
	if len(records) == 0 && len(skipped) == 0 {
		return nil, nil, fmt.Errorf("no records in %s", path)
	}
	return records, skipped, nil
}
