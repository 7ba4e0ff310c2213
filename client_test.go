package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetchPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil || c.Value != "s3cret" {
			http.Error(w, "login required", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, gridPage)
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, []*http.Cookie{{Name: "session", Value: "s3cret"}}, nil)
	require.NoError(t, err)

	p, err := c.FetchPage(context.Background(), ts.URL+"/timesheet.pl?action=grid")
	require.NoError(t, err)
	assert.Equal(t, "4711", p.UID)
	assert.Equal(t, "AbC123", p.Token)
	assert.False(t, p.Inputs["_c3_r1"])
}

func TestClientFetchPageStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "login required", http.StatusForbidden)
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, nil, nil)
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), ts.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, http.MethodGet, se.Method)
}

func TestClientFetchPageSignedOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Please sign in</body></html>`)
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, nil, nil)
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), ts.URL)
	require.ErrorIs(t, err, ErrNoForm)
}

func TestClientSubmit(t *testing.T) {
	var (
		gotQuery string
		gotForm  url.Values
		gotType  string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotType = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		fmt.Fprint(w, "<html>saved</html>")
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, nil, nil)
	require.NoError(t, err)

	grid := GenerateGridFields([]Allocation{training}, InputSet{"_c3_r1": false})
	fields := BuildRequest(pageTokens, "2019-10-18", grid)

	res, err := c.Submit(context.Background(), ts.URL+"/timesheet.pl?uid=4711;app=ta;action=grid;r=AbC123;timesheet_id=9001", fields)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)

	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, "uid=4711;app=ta;action=grid;r=AbC123;timesheet_id=9001", gotQuery)
	assert.Equal(t, "88:223", gotForm.Get("_c1_r1"))
	assert.Equal(t, "737", gotForm.Get("_c2_r1"))
	assert.Equal(t, "8", gotForm.Get("_c3_r1"))
	assert.Equal(t, "Training for next project", gotForm.Get("_c3_r1_dialog_notes"))
	assert.Equal(t, "1", gotForm.Get("_total_rows"))
	assert.Equal(t, ":", gotForm.Get("_c1_r2"))
	assert.Equal(t, "0", gotForm.Get("c2_r2"))
	assert.Equal(t, "Save", gotForm.Get("_save_grid"))
	assert.Len(t, gotForm, len(fields))
}

func TestClientSubmitStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, nil, nil)
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), ts.URL, Fields{"_total_rows": 0})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Contains(t, se.Error(), "unexpected status 500")
}
