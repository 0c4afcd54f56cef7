package stimuli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadList(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "class1.txt", "FR__\\nAPPLE\r\n\n   \nFR__\\nORANGE\n")

	got, err := ReadList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FR__\nAPPLE", "FR__\nORANGE"}, got)
}

func TestReadList_Missing(t *testing.T) {
	_, err := ReadList(filepath.Join(t.TempDir(), "nope.txt"))
	require.ErrorIs(t, err, ErrStimulusFileRead)
	require.ErrorIs(t, err, os.ErrNotExist)

	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Path, "nope.txt")
}

func TestReadItems(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "study.txt", "dog\tperro\n\ncat\\ngato\nbig house\t casa grande \n")

	items, err := ReadItems(path)
	require.NoError(t, err)
	assert.Equal(t, []experiment.LearningItem{
		{Prompt: "dog", Answer: "perro", SourceIndex: 0},
		{Prompt: "cat", Answer: "gato", SourceIndex: 1},
		{Prompt: "big house", Answer: "casa grande", SourceIndex: 2},
	}, items)
	assert.Equal(t, 3, items[2].Marker())
}

func TestReadItems_MalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "study.txt", "dog\tperro\n\nlonely\n")

	_, err := ReadItems(path)
	require.ErrorIs(t, err, ErrMalformedPair)
	require.ErrorIs(t, err, ErrStimulusFileRead)

	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Line)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	files := Files{
		Presentation: writeFile(t, dir, "presentation.txt", "FRUIT\\nAPPLE\n"),
		Study:        writeFile(t, dir, "study.txt", "dog\tperro\n"),
		Class1:       writeFile(t, dir, "class1.txt", "a\nb\n"),
		Class2:       writeFile(t, dir, "class2.txt", "c\nd\n"),
	}

	s, err := Load(t.Context(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{"FRUIT\nAPPLE"}, s.Presentation)
	assert.Len(t, s.Items, 1)
	assert.Equal(t, []string{"a", "b"}, s.Class1)
	assert.Equal(t, []string{"c", "d"}, s.Class2)

	require.NoError(t, Validate(s, 1, 2))
	require.ErrorIs(t, Validate(s, 2, 2), experiment.ErrInsufficientStimuli)
}

func TestLoad_MissingClassFile(t *testing.T) {
	dir := t.TempDir()
	files := Files{
		Study:  writeFile(t, dir, "study.txt", "dog\tperro\n"),
		Class1: writeFile(t, dir, "class1.txt", "a\n"),
		Class2: filepath.Join(dir, "missing.txt"),
	}

	_, err := Load(t.Context(), files)
	require.ErrorIs(t, err, ErrStimulusFileRead)
}

func TestValidate(t *testing.T) {
	base := experiment.Stimuli{
		Items:  []experiment.LearningItem{{Prompt: "dog", Answer: "perro"}},
		Class1: []string{"yes"},
		Class2: []string{"no"},
	}
	require.NoError(t, Validate(base, 1, 1))

	empty := base
	empty.Items = nil
	require.ErrorIs(t, Validate(empty, 1, 1), experiment.ErrNoItems)

	same := base
	same.Class2 = []string{"yes"}
	require.ErrorIs(t, Validate(same, 1, 1), ErrOverlappingClasses)
}

func TestFiles_Paths(t *testing.T) {
	f := Files{Study: "s.txt", Class1: "a.txt", Class2: "b.txt"}
	assert.Equal(t, []string{"s.txt", "a.txt", "b.txt"}, f.Paths())
}
