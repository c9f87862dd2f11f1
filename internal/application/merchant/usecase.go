// Package merchant exposes the merchant configuration the POS client needs.
package merchant

import (
	"context"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
)

const useCaseDescribe = "merchant.describe"

type Description struct {
	WalletAddressURL string `json:"merchantWalletAddressUrl"`
	AssetCode        string `json:"assetCode"`
	AssetScale       int    `json:"assetScale"`
	InventoryBackend string `json:"inventoryBackend"`
}

type DescribeMerchantUseCase struct {
	description Description
	inst        application.Instruments
}

func NewDescribeMerchantUseCase(m application.Merchant, inventoryBackend string, tel observability.Observability) *DescribeMerchantUseCase {
	return &DescribeMerchantUseCase{
		description: Description{
			WalletAddressURL: m.WalletAddressURL,
			AssetCode:        m.AssetCode,
			AssetScale:       m.AssetScale,
			InventoryBackend: inventoryBackend,
		},
		inst: application.NewInstruments(tel, "merchant-service"),
	}
}

func (uc *DescribeMerchantUseCase) Execute(ctx context.Context, _ struct{}) (_ Description, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseDescribe, "DescribeMerchant")
	defer func() { run.End(ctx, err) }()
	return uc.description, nil
}
