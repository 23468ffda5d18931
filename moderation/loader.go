package moderation

import (
	"bufio"
	"comms-lab/errors"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// CensoredData carries the loaded words and the dictionaries they came from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// LoadCensored reads every .txt file of dir, one word per line, e.g. "fr.txt" is the
// French dictionary. Duplicates across files are collapsed.
func LoadCensored(fsys fs.FS, dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		if err := readWords(fsys, path.Join(dir, entry.Name()), uniqueWords); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	slices.Sort(words)
	return &CensoredData{Words: words, Languages: languages}, nil
}

func readWords(fsys fs.FS, name string, into map[string]struct{}) error {
	file, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	// Scanner handles both \n and \r\n line endings
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			into[line] = struct{}{}
		}
	}
	return scanner.Err()
}
