package risk

import (
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// PositionSize implements spec §4.3's position_size operation.
// Dollar risk per trade = equity × max_risk_per_trade_pct / 100.
// Per-share risk = |entry - stop|. shares = floor(dollar_risk /
// per_share_risk), clamped so shares*entry <= equity*max_position_size_pct/100.
// Returns 0 if per-share risk is zero, negative, or NaN.
func PositionSize(accountEquity, entryPrice, stopLossPrice money.Money, params RiskParameters) money.Shares {
	perShareRisk := entryPrice.Sub(stopLossPrice).Abs()
	if perShareRisk.IsZero() || perShareRisk.IsNegative() {
		return money.Shares{}
	}

	dollarRisk := accountEquity.Mul(params.MaxRiskPerTradePct / 100.0)
	shares := money.FloorShares(dollarRisk, perShareRisk)

	maxPositionValue := accountEquity.Mul(params.MaxPositionSizePct / 100.0)
	positionValue := entryPrice.Mul(shares.Float64())
	if positionValue.GreaterThan(maxPositionValue) && entryPrice.Float64() > 0 {
		clamped := money.FloorShares(maxPositionValue, entryPrice)
		if clamped.LessThan(shares) {
			shares = clamped
		}
	}
	return shares
}

// ComputeStops implements spec §4.3's compute_stops operation. When atr
// is non-nil and positive, stop/take derive from ATR multipliers;
// otherwise fixed percentages apply. Sign conventions invert for Sell.
// Take-profit is raised, never lowered, to satisfy the reward:risk
// floor if the initial computation falls short.
func ComputeStops(entry money.Money, side Side, params RiskParameters, atr *float64) (stopLoss, takeProfit money.Money) {
	var stopDist, takeDist float64
	if atr != nil && *atr > 0 {
		stopDist = params.ATRStopMultiplier * *atr
		takeDist = params.ATRTakeMultiplier * *atr
	} else {
		stopDist = entry.Float64() * params.DefaultStopLossPct / 100.0
		takeDist = entry.Float64() * params.DefaultTakeProfitPct / 100.0
	}

	if side == Buy {
		stopLoss = money.MoneyFromFloat(entry.Float64() - stopDist)
		takeProfit = money.MoneyFromFloat(entry.Float64() + takeDist)
	} else {
		stopLoss = money.MoneyFromFloat(entry.Float64() + stopDist)
		takeProfit = money.MoneyFromFloat(entry.Float64() - takeDist)
	}

	risk := entry.Sub(stopLoss).Abs()
	reward := takeProfit.Sub(entry).Abs()
	floorReward := risk.Mul(params.RewardRiskFloor)
	if reward.LessThan(floorReward) && risk.Float64() > 0 {
		if side == Buy {
			takeProfit = entry.Add(floorReward)
		} else {
			takeProfit = entry.Sub(floorReward)
		}
	}
	return stopLoss, takeProfit
}

// RewardRiskRatio returns |take-entry| / |entry-stop|, 0 if risk is zero.
func RewardRiskRatio(entry, stop, take money.Money) float64 {
	risk := entry.Sub(stop).Abs().Float64()
	if risk == 0 {
		return 0
	}
	reward := take.Sub(entry).Abs().Float64()
	return reward / risk
}
