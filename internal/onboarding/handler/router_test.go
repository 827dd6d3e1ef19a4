package handler_test

import (
	"net/http"
	"testing"

	"mesa/pkg/testutil"
)

func TestRouterWiring(t *testing.T) {
	testutil.Given(t, "the onboarding routes", func(t *testing.T) {
		_, r := newRouter(t)

		testutil.When(t, "calling GET on a registration route", func(t *testing.T) {
			rec := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/api/onboarding/restaurants"))

			testutil.Then(t, "it should reject the method", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusMethodNotAllowed)
			})
		})

		testutil.When(t, "calling an unknown path", func(t *testing.T) {
			rec := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodPost, "/api/onboarding/unknown"))

			testutil.Then(t, "it should respond with not found", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusNotFound)
			})
		})
	})
}
