package quote

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hydrox/vault-engine/internal/fees"
	"github.com/hydrox/vault-engine/internal/glp"
	"github.com/hydrox/vault-engine/internal/liquidation"
	"github.com/hydrox/vault-engine/internal/model"
	"github.com/hydrox/vault-engine/internal/position"
	"github.com/hydrox/vault-engine/internal/store"
	"github.com/hydrox/vault-engine/internal/vault"
)

type errorClass struct {
	err    error
	status int
	reason string
}

// errorClasses maps engine sentinels to HTTP statuses and the metric label
// used for plan rejections. First match wins.
var errorClasses = []errorClass{
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{vault.ErrPositionNotFound, http.StatusNotFound, "position_not_found"},

	{liquidation.ErrNotLiquidatable, http.StatusConflict, "not_liquidatable"},
	{vault.ErrUtilizationExceeded, http.StatusConflict, "utilization_exceeded"},
	{vault.ErrInsufficientLiquidity, http.StatusConflict, "insufficient_liquidity"},
	{vault.ErrStaleSnapshot, http.StatusConflict, "stale_snapshot"},
	{glp.ErrExceedsSupply, http.StatusConflict, "exceeds_supply"},
	{glp.ErrEmptySupply, http.StatusConflict, "empty_supply"},

	{position.ErrLeverageExceeded, http.StatusBadRequest, "leverage_exceeded"},
	{position.ErrNonPositiveCollateral, http.StatusBadRequest, "non_positive_collateral"},
	{position.ErrNonPositiveSize, http.StatusBadRequest, "non_positive_size"},
	{fees.ErrFeeOutOfRange, http.StatusBadRequest, "fee_out_of_range"},
	{glp.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{vault.ErrTokenNotWhitelisted, http.StatusBadRequest, "token_not_whitelisted"},
	{vault.ErrInvalidDelta, http.StatusBadRequest, "invalid_delta"},
	{vault.ErrInvalidSide, http.StatusBadRequest, "invalid_side"},
	{vault.ErrInvalidPrice, http.StatusBadRequest, "invalid_price"},
	{vault.ErrPositionMismatch, http.StatusBadRequest, "position_mismatch"},
	{model.ErrUnknownAction, http.StatusBadRequest, "unknown_action"},
	{model.ErrInvalidAssetClass, http.StatusBadRequest, "invalid_asset_class"},
	{model.ErrInvalidPositionKey, http.StatusBadRequest, "invalid_position_key"},

	{model.ErrNegativeAvailableLiquidity, http.StatusInternalServerError, "corrupt_snapshot"},
	{model.ErrLiquidityWithoutSupply, http.StatusInternalServerError, "corrupt_snapshot"},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.status, c.reason
		}
	}
	return http.StatusInternalServerError, "internal"
}

func reason(err error) string {
	_, r := classify(err)
	return r
}

// writeEngineError maps err to a status code and writes it. Unclassified
// errors are logged and reported without detail.
func writeEngineError(w http.ResponseWriter, err error) {
	status, _ := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}
