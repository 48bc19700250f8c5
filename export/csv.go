package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/dhcgn/vmg-to-imap/model"
)

// WriteCSV writes a header row followed by one row per message.
func WriteCSV(w io.Writer, msgs []model.Message) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, msg := range msgs {
		if err := cw.Write(row(msg)); err != nil {
			return fmt.Errorf("write csv row %s: %w", msg.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func WriteCSVFile(path string, msgs []model.Message) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close csv file: %w", cerr)
		}
	}()
	return WriteCSV(file, msgs)
}
