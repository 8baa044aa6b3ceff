// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package tokeninfo_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/tokeninfo"
)

const baseURL = "https://api.test"

func newClient(t *testing.T) *tokeninfo.Client {
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return tokeninfo.New(tokeninfo.Config{BaseURL: baseURL + "/"}, tokeninfo.WithHTTPClient(httpClient))
}

func TestMintLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("success and cache", func(t *testing.T) {
		client := newClient(t)
		httpmock.RegisterResponder(http.MethodGet, baseURL+"/v1/krc20/token/KASP",
			httpmock.NewStringResponder(http.StatusOK,
				`{"message":"successful","result":[{"tick":"KASP","max":"2100000000000000","lim":"100000000000","dec":"8"}]}`))

		limit, err := client.MintLimit(ctx, "kasp")
		require.NoError(t, err)
		require.Equal(t, tokeninfo.Limit{Ticker: "KASP", Amount: 100000000000, Decimals: 8}, limit)
		require.Equal(t, "1000.00000000", limit.String())

		minted, err := limit.Minted(20)
		require.NoError(t, err)
		require.Equal(t, "20000.00000000", minted)

		_, err = client.MintLimit(ctx, "KASP")
		require.NoError(t, err)
		require.Equal(t, 1, httpmock.GetTotalCallCount())
	})

	t.Run("unknown ticker", func(t *testing.T) {
		client := newClient(t)
		httpmock.RegisterResponder(http.MethodGet, baseURL+"/v1/krc20/token/NONE",
			httpmock.NewStringResponder(http.StatusOK, `{"message":"successful","result":[]}`))

		_, err := client.MintLimit(ctx, "NONE")
		require.ErrorIs(t, err, ledger.ErrExternalService)
		require.ErrorIs(t, err, tokeninfo.ErrTokenNotFound)
	})

	t.Run("server error is not cached", func(t *testing.T) {
		client := newClient(t)
		httpmock.RegisterResponder(http.MethodGet, baseURL+"/v1/krc20/token/KASP",
			httpmock.NewStringResponder(http.StatusBadGateway, ""))

		_, err := client.MintLimit(ctx, "KASP")
		require.ErrorIs(t, err, ledger.ErrExternalService)

		_, err = client.MintLimit(ctx, "KASP")
		require.ErrorIs(t, err, ledger.ErrExternalService)
		require.Equal(t, 2, httpmock.GetTotalCallCount())
	})

	t.Run("invalid limit", func(t *testing.T) {
		client := newClient(t)
		httpmock.RegisterResponder(http.MethodGet, baseURL+"/v1/krc20/token/KASP",
			httpmock.NewStringResponder(http.StatusOK, `{"result":[{"tick":"KASP","lim":"-1"}]}`))

		_, err := client.MintLimit(ctx, "KASP")
		require.ErrorIs(t, err, ledger.ErrExternalService)
	})
}
