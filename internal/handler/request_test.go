package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		jsonOnly    bool
		wantStatus  int
		wantFields  map[string]string
	}{
		{name: "empty body without type", body: "", wantFields: map[string]string{}},
		{name: "empty body with foreign type", contentType: "text/plain", body: "", jsonOnly: true, wantFields: map[string]string{}},
		{name: "json object", contentType: "application/json; charset=utf-8", body: `{"username":"bob","password":"pw"}`,
			wantFields: map[string]string{"username": "bob", "password": "pw"}},
		{name: "json numbers become text", contentType: "application/json", body: `{"username":42}`,
			wantFields: map[string]string{"username": "42"}},
		{name: "form body", contentType: "application/x-www-form-urlencoded", body: "username=bob&password=pw",
			wantFields: map[string]string{"username": "bob", "password": "pw"}},
		{name: "form rejected when json only", contentType: "application/x-www-form-urlencoded", body: "username=bob",
			jsonOnly: true, wantStatus: http.StatusUnsupportedMediaType},
		{name: "missing type with body", body: `{"username":"bob"}`, wantStatus: http.StatusUnsupportedMediaType},
		{name: "malformed json", contentType: "application/json", body: `{"username":`, wantStatus: http.StatusBadRequest},
		{name: "json list", contentType: "application/json", body: `["bob"]`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			p, reqErr := decodePayload(req, tt.jsonOnly)
			if tt.wantStatus != 0 {
				require.NotNil(t, reqErr)
				assert.Equal(t, tt.wantStatus, reqErr.status)
				return
			}
			require.Nil(t, reqErr)
			assert.Len(t, p, len(tt.wantFields))
			for name, want := range tt.wantFields {
				got := p.str(name)
				require.NotNil(t, got, name)
				assert.Equal(t, want, *got)
			}
		})
	}
}

func TestDecodePayload_UnsupportedMediaTypeMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api-token-auth/", strings.NewReader("username=bob"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, reqErr := decodePayload(req, true)
	require.NotNil(t, reqErr)
	assert.Equal(t, map[string]string{
		"detail": `Unsupported media type "application/x-www-form-urlencoded" in request.`,
	}, reqErr.body)
}

func TestDecodePayload_Multipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("item", "Widget"))
	require.NoError(t, mw.WriteField("price", "12.50"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/orders/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	p, reqErr := decodePayload(req, false)
	require.Nil(t, reqErr)
	assert.Equal(t, "Widget", *p.str("item"))
	assert.JSONEq(t, `"12.50"`, string(p.raw("price")))
}

func TestPayloadPK(t *testing.T) {
	p := payload{
		"int":    []byte(`3`),
		"str":    []byte(`"4"`),
		"word":   []byte(`"four"`),
		"list":   []byte(`[1]`),
		"null":   []byte(`null`),
	}

	v, msg := p.pk("int")
	require.NotNil(t, v)
	assert.Equal(t, int64(3), *v)
	assert.Empty(t, msg)

	v, _ = p.pk("str")
	require.NotNil(t, v)
	assert.Equal(t, int64(4), *v)

	_, msg = p.pk("word")
	assert.Equal(t, "Incorrect type. Expected pk value, received str.", msg)

	_, msg = p.pk("list")
	assert.Equal(t, "Incorrect type. Expected pk value, received list.", msg)

	v, msg = p.pk("null")
	assert.Nil(t, v)
	assert.Empty(t, msg)

	v, _ = p.pk("missing")
	assert.Nil(t, v)
}
