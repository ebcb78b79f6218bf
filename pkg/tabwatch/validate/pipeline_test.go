package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/table"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateFile_CleanFile(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	path := writeFile(t, "name,phone\nBook Haven,555-0101\nInk & Paper,555-0102\n")

	res, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, []string{"name", "phone"}, res.Headers)
	require.NotNil(t, res.Perf)
}

func TestValidateFile_NoDataRecords(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	path := writeFile(t, "name,phone\n")

	res, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, SeverityCritical, res.Errors[0].Severity)
	assert.Equal(t, CodeNoRecords, res.Errors[0].Code)
}

func TestValidateFile_EmptyFile(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	path := writeFile(t, "")

	res, err := p.ValidateFile(path)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, CodeNoRecords, res.Errors[0].Code)
}

func TestValidateFile_MissingFile(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	_, err := p.ValidateFile(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestValidateFile_StructuralFindings(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	path := writeFile(t, "name,,name\na,b,c\n")

	res, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	codes := make([]string, 0, len(res.Errors))
	for _, f := range res.Errors {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, CodeEmptyHeader)
	assert.Contains(t, codes, CodeDuplicateHeader)
}

func TestValidateFile_RowWidthSeverity(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "a,b,c\n1,2\n")

	lax, err := New(Options{}).ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, lax.IsValid, "short rows are warnings by default")
	require.Len(t, lax.Warnings, 1)
	assert.Equal(t, CodeRowWidth, lax.Warnings[0].Code)

	strict, err := New(Options{Strict: true}).ValidateFile(path)
	require.NoError(t, err)
	assert.False(t, strict.IsValid, "strict mode promotes row-width to error")
}

func TestValidateFile_Schema(t *testing.T) {
	t.Parallel()

	p := New(Options{Schema: &Schema{
		Columns: []ColumnSpec{
			{Name: "name", Required: true},
			{Name: "lat", Type: TypeNumber},
			{Name: "website", Required: true},
		},
	}})
	path := writeFile(t, "name,lat,extra\nBook Haven,not-a-number,x\n")

	res, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.False(t, res.IsValid)

	var missing, mismatch bool
	for _, f := range res.Errors {
		switch f.Code {
		case CodeMissingColumn:
			missing = true
			assert.Equal(t, "website", f.Column)
		case CodeTypeMismatch:
			mismatch = true
			assert.Equal(t, "lat", f.Column)
		}
	}
	assert.True(t, missing)
	assert.True(t, mismatch)

	var unexpected bool
	for _, f := range res.Warnings {
		if f.Code == CodeUnexpectedColumn && f.Column == "extra" {
			unexpected = true
		}
	}
	assert.True(t, unexpected)
}

func TestCustomValidator_LatitudeOutOfRange(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	require.NoError(t, p.RegisterValidator(LatitudeValidator("latitude")))

	path := writeFile(t, "name,latitude\nBook Haven,95.0\n")
	res, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, SeverityError, res.Errors[0].Severity)
	assert.Equal(t, CodeValidatorFailed, res.Errors[0].Code)
	assert.Equal(t, "latitude", res.Errors[0].Column)
	assert.Equal(t, 0, res.Errors[0].Row)
}

func TestCustomValidator_PanicBecomesWarning(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	require.NoError(t, p.RegisterValidator(&CustomValidator{
		Name:    "exploder",
		Columns: []string{"phone"},
		Validate: func(string, map[string]string, int, string) error {
			panic("boom")
		},
	}))

	path := writeFile(t, "name,phone\nBook Haven,555-0101\n")
	res, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.True(t, res.IsValid, "a broken validator must not invalidate the file")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, CodeValidatorPanic, res.Warnings[0].Code)
	assert.Contains(t, res.Warnings[0].Message, "exploder")
}

func TestRegisterValidator_Duplicate(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	v := RequiredValidator("name")
	require.NoError(t, p.RegisterValidator(v))
	assert.Error(t, p.RegisterValidator(v))

	assert.True(t, p.UnregisterValidator("required"))
	assert.False(t, p.UnregisterValidator("required"))
	require.NoError(t, p.RegisterValidator(v))
	assert.Equal(t, []string{"required"}, p.ValidatorNames())
}

func TestErrorCap(t *testing.T) {
	t.Parallel()

	p := New(Options{ErrorCap: 3})
	require.NoError(t, p.RegisterValidator(&CustomValidator{
		Name:    "always-fails",
		Columns: []string{"v"},
		Validate: func(string, map[string]string, int, string) error {
			return errors.New("bad cell")
		},
	}))

	content := "v\n"
	for range 10 {
		content += "x\n"
	}
	path := writeFile(t, content)

	res, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.Len(t, res.Errors, 3, "collection stops at the cap")
	assert.Equal(t, 10, res.RowCount, "reading continues past the cap")

	var capWarning int
	for _, w := range res.Warnings {
		if w.Code == CodeErrorCapReached {
			capWarning++
		}
	}
	assert.Equal(t, 1, capWarning, "exactly one cap warning")
}

func TestValidateFile_Deterministic(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	require.NoError(t, p.RegisterValidator(LatitudeValidator("lat")))
	path := writeFile(t, "name,lat\na,95\nb,12\nc,-100\n")

	r1, err := p.ValidateFile(path)
	require.NoError(t, err)
	r2, err := p.ValidateFile(path)
	require.NoError(t, err)

	assert.Equal(t, r1.Errors, r2.Errors)
	assert.Equal(t, r1.Warnings, r2.Warnings)
	assert.Equal(t, r1.Metadata, r2.Metadata)
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	content := "name,count,active,email\n" +
		"a,1,true,a@example.com\n" +
		"b,2,false,b@example.com\n" +
		"a,1,true,a@example.com\n" +
		",,,\n"
	path := writeFile(t, content)

	res, err := p.ValidateFile(path)
	require.NoError(t, err)
	require.NotNil(t, res.Metadata)

	assert.Equal(t, TypeString, res.Metadata.ColumnTypes["name"])
	assert.Equal(t, TypeNumber, res.Metadata.ColumnTypes["count"])
	assert.Equal(t, TypeBoolean, res.Metadata.ColumnTypes["active"])
	assert.Equal(t, TypeEmail, res.Metadata.ColumnTypes["email"])
	assert.Equal(t, 1, res.Metadata.EmptyRows)
	assert.Equal(t, 1, res.Metadata.DuplicateRows)
	assert.Equal(t, "utf-8", res.Metadata.Encoding)
}

func TestValidateFile_CustomDelimiter(t *testing.T) {
	t.Parallel()

	p := New(Options{Dialect: table.Dialect{Delimiter: ';'}})
	path := writeFile(t, "name;phone\nBook Haven;555-0101\n")

	res, err := p.ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{"name", "phone"}, res.Headers)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  ValueType
	}{
		{"42", TypeNumber},
		{"-3.14", TypeNumber},
		{"true", TypeBoolean},
		{"No", TypeBoolean},
		{"2024-06-15", TypeDate},
		{"a@example.com", TypeEmail},
		{"https://example.com/x", TypeURL},
		{"Book Haven", TypeString},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.value, tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.value))
		})
	}
}

func TestInferColumnType_MajorityVote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TypeNumber, inferColumnType([]string{"1", "2", "oops", "3"}))
	assert.Equal(t, TypeString, inferColumnType([]string{"a", "b", "1"}))
	assert.Equal(t, TypeString, inferColumnType([]string{"", "", ""}))
}
