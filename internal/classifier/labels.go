package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"vision-inspector/internal/errcode"
)

// LoadLabels reads one label per non-empty line. Line order is the class
// index order of the model output.
func LoadLabels(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errcode.New(errcode.LabelsNotFound, "empty labels path")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &errcode.Error{Code: errcode.LabelsNotFound, Detail: path, Err: err}
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			labels = append(labels, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels %s: %w", path, err)
	}
	return labels, nil
}
