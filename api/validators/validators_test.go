package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
)

type addItemBody struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
	Note      string `json:"note,omitempty" validate:"max=5"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func asAppError(t *testing.T, err error) *pkgerrors.Error {
	t.Helper()
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	return appErr
}

func TestDecodeJSONBody(t *testing.T) {
	var dest addItemBody
	require.NoError(t, DecodeJSONBody(post(`{"product_id":"p1","quantity":2}`), &dest))
	assert.Equal(t, 2, dest.Quantity)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]struct {
		body    string
		message string
	}{
		"empty":    {body: ``, message: "request body is empty"},
		"syntax":   {body: `{"product_id":`, message: "malformed JSON"},
		"type":     {body: `{"product_id":"p1","quantity":"two"}`, message: "wrong type for field"},
		"unknown":  {body: `{"product_id":"p1","quantity":1,"coupon":"X"}`, message: "unknown field"},
		"trailing": {body: `{"product_id":"p1","quantity":1}{}`, message: "request body must hold a single JSON object"},
		"invalid":  {body: `{"quantity":0,"note":"too long"}`, message: "validation failed"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var dest addItemBody
			appErr := asAppError(t, DecodeJSONBody(post(tc.body), &dest))
			assert.Equal(t, tc.message, appErr.Message())
		})
	}
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	var dest addItemBody
	appErr := asAppError(t, DecodeJSONBody(post(`{"quantity":0}`), &dest))
	details, ok := appErr.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["product_id"])
	assert.Equal(t, "must be at least 1", details["quantity"])
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	payload := `{"product_id":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	var dest addItemBody
	appErr := asAppError(t, DecodeJSONBody(post(payload), &dest))
	assert.Equal(t, "request body too large", appErr.Message())
}

func TestQueryText(t *testing.T) {
	assert.Equal(t, "fresh basil", QueryText("  fresh \t\n basil  ", 0))
	assert.Equal(t, "milk", QueryText("mi\x00lk", 0))
	assert.Equal(t, "jalapeño", QueryText("jalapeño peppers", 8))
	assert.Equal(t, "ab", QueryText("ab cd", 3))
	assert.Equal(t, "", QueryText("   ", 10))
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := BearerToken(req)
	require.Error(t, err)

	req.Header.Set("Authorization", "Bearer abc.def")
	token, err := BearerToken(req)
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

func TestParseQueryInt(t *testing.T) {
	get := func(query string) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/products?"+query, nil)
	}

	v, err := ParseQueryInt(get(""), "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, err = ParseQueryInt(get("limit=%2035%20"), "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 35, v)

	appErr := asAppError(t, mustErr(ParseQueryInt(get("limit=ten"), "limit", 20, 1, 100)))
	assert.Equal(t, "limit", appErr.Details().(map[string]any)["field"])

	appErr = asAppError(t, mustErr(ParseQueryInt(get("limit=101"), "limit", 20, 1, 100)))
	assert.Equal(t, 100, appErr.Details().(map[string]any)["max"])
	asAppError(t, mustErr(ParseQueryInt(get("limit=0"), "limit", 20, 1, 100)))
}

func TestParsePaginationBoundsLimit(t *testing.T) {
	params, err := ParsePagination(httptest.NewRequest(http.MethodGet, "/orders?cursor=%20abc%20", nil))
	require.NoError(t, err)
	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, "abc", params.Cursor)

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/orders?limit=500", nil))
	asAppError(t, err)
}

func mustErr(_ int, err error) error {
	return err
}
