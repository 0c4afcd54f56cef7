// Package stimuli loads the stimulus lists of a session from text files.
//
// Every file holds one stimulus per line. A literal `\n` in a line becomes a
// line break on screen and blank lines are skipped. Study files hold
// prompt/answer pairs separated by a tab or by the first `\n`.
package stimuli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

var (
	// ErrStimulusFileRead is matched by every load failure.
	ErrStimulusFileRead = errors.New("failed to read stimulus file")

	// ErrMalformedPair indicates a study line without an answer.
	ErrMalformedPair = errors.New("study line has no answer")

	// ErrOverlappingClasses indicates a label present in both class lists.
	ErrOverlappingClasses = errors.New("training classes share a label")
)

// FileError is a load failure tied to a file and, when known, a line.
type FileError struct {
	Path string
	Line int
	Err  error
}

func (e *FileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %v", ErrStimulusFileRead, e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrStimulusFileRead, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Is reports true for ErrStimulusFileRead.
func (e *FileError) Is(target error) bool {
	return target == ErrStimulusFileRead
}

// Files names the four stimulus lists of a session.
type Files struct {
	Presentation string `koanf:"presentation_file"`
	Study        string `koanf:"study_file"`
	Class1       string `koanf:"class1_file"`
	Class2       string `koanf:"class2_file"`
}

// Paths returns the configured paths, skipping empty ones.
func (f Files) Paths() []string {
	var out []string
	for _, p := range []string{f.Presentation, f.Study, f.Class1, f.Class2} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type line struct {
	number int
	text   string
}

func readLines(path string) ([]line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	var out []line
	scanner := bufio.NewScanner(f)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, line{number: n, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return out, nil
}

// ReadList reads a stimulus list.
func ReadList(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.ReplaceAll(l.text, `\n`, "\n"))
	}
	return out, nil
}

// ReadItems reads a study list into learning items. SourceIndex is the
// item's position in the file.
func ReadItems(path string) ([]experiment.LearningItem, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	items := make([]experiment.LearningItem, 0, len(lines))
	for _, l := range lines {
		prompt, answer, ok := strings.Cut(l.text, "\t")
		if !ok {
			prompt, answer, ok = strings.Cut(l.text, `\n`)
		}
		prompt = strings.TrimSpace(prompt)
		answer = strings.TrimSpace(answer)
		if !ok || prompt == "" || answer == "" {
			return nil, &FileError{Path: path, Line: l.number, Err: ErrMalformedPair}
		}
		items = append(items, experiment.LearningItem{
			Prompt:      strings.ReplaceAll(prompt, `\n`, "\n"),
			Answer:      strings.ReplaceAll(answer, `\n`, "\n"),
			SourceIndex: len(items),
		})
	}
	return items, nil
}

// Load reads all four lists concurrently. The presentation list is optional.
func Load(ctx context.Context, files Files) (experiment.Stimuli, error) {
	var s experiment.Stimuli
	g, _ := errgroup.WithContext(ctx)

	if files.Presentation != "" {
		g.Go(func() (err error) {
			s.Presentation, err = ReadList(files.Presentation)
			return err
		})
	}
	g.Go(func() (err error) {
		s.Items, err = ReadItems(files.Study)
		return err
	})
	g.Go(func() (err error) {
		s.Class1, err = ReadList(files.Class1)
		return err
	})
	g.Go(func() (err error) {
		s.Class2, err = ReadList(files.Class2)
		return err
	})

	if err := g.Wait(); err != nil {
		return experiment.Stimuli{}, err
	}
	return s, nil
}

// Validate checks that s can run numBlocks blocks of blockSize labels per
// class and that the two classes are distinct.
func Validate(s experiment.Stimuli, numBlocks, blockSize int) error {
	if len(s.Items) == 0 {
		return experiment.ErrNoItems
	}
	need := numBlocks * blockSize
	if len(s.Class1) < need || len(s.Class2) < need {
		return fmt.Errorf("%w: need %d per class, have %d and %d",
			experiment.ErrInsufficientStimuli, need, len(s.Class1), len(s.Class2))
	}
	seen := make(map[string]struct{}, len(s.Class1))
	for _, label := range s.Class1[:need] {
		seen[label] = struct{}{}
	}
	for _, label := range s.Class2[:need] {
		if _, ok := seen[label]; ok {
			return fmt.Errorf("%w: %q", ErrOverlappingClasses, label)
		}
	}
	return nil
}
