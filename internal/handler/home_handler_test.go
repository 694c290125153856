package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"biblioteca/internal/model"
	"biblioteca/internal/service"
)

func TestHomeHandler_Index(t *testing.T) {
	catalog := new(MockCatalogService)
	catalog.On("Dashboard", mock.Anything).Return(&service.Dashboard{
		TotalBooks:     3,
		AvailableBooks: 2,
		ActiveLoans:    1,
		RecentBooks:    []model.Book{{ID: 3, Title: "Aura"}},
	}, nil)

	e := newTestEcho()
	as(e, regularUser(2))
	e.GET("/", NewHomeHandler(catalog).Index)

	rec := get(e, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body["total_books"])
	assert.EqualValues(t, 2, body["available_books"])
	assert.EqualValues(t, 1, body["active_loans"])
	assert.Equal(t, true, body["authenticated"])
	assert.Len(t, body["recent_books"], 1)
	assert.Empty(t, body["messages"])
	catalog.AssertExpectations(t)
}
