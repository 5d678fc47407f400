package database

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fmea-api/internal/logging"
)

func TestQueryLogger(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	var buf bytes.Buffer
	db := NewBunDB(sqlDB)
	db.AddQueryHook(&queryLogger{logger: logging.NewLoggerWithWriter(&buf, false), threshold: 0})

	mock.ExpectExec(`DELETE FROM "equipment"`).WillReturnError(errors.New("boom"))

	_, err = db.NewDelete().Model((*Equipment)(nil)).Where("id = ?", 1).Exec(context.Background())
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"query failed"`)
	assert.Contains(t, out, `"operation":"DELETE"`)
	assert.NotContains(t, out, `"sql"`)
}
