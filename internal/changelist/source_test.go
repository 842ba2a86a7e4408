// SPDX-License-Identifier: MIT

package changelist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HeaderByNameAndExtraColumns(t *testing.T) {
	input := "note,Action, user_id ,date\n" +
		"first,Add,U1,2026-10-15\n" +
		"second,remove,U2,2026-10-15\n"

	rows, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Row{Line: 2, MemberID: "U1", Date: "2026-10-15", Action: "Add"}, rows[0])
	assert.Equal(t, Row{Line: 3, MemberID: "U2", Date: "2026-10-15", Action: "remove"}, rows[1])
}

func TestParse_StripsByteOrderMark(t *testing.T) {
	input := "\ufeffuser_id,date,action\nU1,2026-10-15,add\n"

	rows, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "U1", rows[0].MemberID)
}

func TestParse_ShortRowsKeepEmptyCells(t *testing.T) {
	input := "user_id,date,action\nU1,2026-10-15\n"

	rows, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Action, "missing cell is left for validation to reject")
}

func TestParse_SkipsBlankRows(t *testing.T) {
	input := "user_id,date,action\n,,\nU1,2026-10-15,add\n"

	rows, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Line)
}

func TestParse_MissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("user_id,when,action\nU1,x,add\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "date")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "members.csv")
	require.NoError(t, os.WriteFile(path, []byte("user_id,date,action\nU1,2026-10-15,add\n"), 0o600))

	rows, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.csv"))

	rows, err := src.Load(context.Background())
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource("members.csv").Load(ctx)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}
