package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/stretchr/testify/assert"
)

var url = "http://localhost:5689"

func InitMockDatabase(dbName string) (Repository, error) {
	httpmock.Activate()

	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s", url, "_all_dbs"),
		httpmock.NewStringResponder(200, `[]`))

	mr, mErr := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	if mErr != nil {
		return nil, mErr
	}
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s", url, dbName), mr)
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", url, dbName), mr)
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s", url, dbName), mr)

	db, err := NewCouchDBRepository(url, dbName, "test", "test", true)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func deactivateMock() {
	httpmock.DeactivateAndReset()
}

func TestInitNewDatabase(t *testing.T) {
	db, err := InitMockDatabase("test")
	defer deactivateMock()
	if err != nil {
		t.Fatal(err)
	}
	if db == nil {
		t.Fatal("db is nil")
	}
}

func TestSaveAndGetByID(t *testing.T) {
	db, _ := InitMockDatabase("test")
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s/%s", url, "test", "abc"), mk)

	mk, _ = httpmock.NewJsonResponder(200, types.BaseDocument{ID: "abc"})
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", url, "test", "abc"), mk)

	sErr := db.Save(context.Background(), "abc", &types.BaseDocument{ID: "abc"})
	assert.NoError(t, sErr)

	res, err := db.GetByID(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	var doc types.BaseDocument
	mErr := MapToObject(res, &doc)
	assert.NoError(t, mErr)
	assert.Equal(t, "abc", doc.ID)
}

func TestSaveConflict(t *testing.T) {
	db, _ := InitMockDatabase("test")
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(409, types.CouchDBError{Error: "conflict", Reason: "Document update conflict."})
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s/%s", url, "test", "taken"), mk)

	err := db.Save(context.Background(), "taken", &types.BaseDocument{ID: "taken"})
	assert.Equal(t, types.ErrConflict, err)
}

func TestGetByIDNotFound(t *testing.T) {
	db, _ := InitMockDatabase("test")
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(404, types.CouchDBError{Error: "not_found", Reason: "missing"})
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", url, "test", "missing"), mk)

	_, err := db.GetByID(context.Background(), "missing")
	assert.Equal(t, types.ErrNotFound, err)
}
