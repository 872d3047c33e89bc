package services

import (
	"os"
	"strconv"
)

// RewardAmounts define the fixed PRO amounts paid per event (tunable via env)
type RewardAmounts struct {
	InvitePro  int64 // paid to the referrer when a referral first joins
	DepositPro int64 // paid to the referrer on the referral's first deposit
	GamePro    int64 // paid per game play (after deposit)
	LoginPro   int64 // optional login bonus, 0 disables it
	RateProUSD int64 // fixed display rate: PRO per USD
}

var DefaultRewardAmounts = RewardAmounts{
	InvitePro:  1000,
	DepositPro: 5000,
	GamePro:    50000,
	LoginPro:   0,
	RateProUSD: 10000,
}

// LoadRewardAmounts reads overrides from the environment, falling back to
// the defaults above.
func LoadRewardAmounts() RewardAmounts {
	amounts := DefaultRewardAmounts
	amounts.InvitePro = envInt64("INVITE_REWARD_PRO", amounts.InvitePro)
	amounts.DepositPro = envInt64("DEPOSIT_REWARD_PRO", amounts.DepositPro)
	amounts.GamePro = envInt64("GAME_REWARD_PRO", amounts.GamePro)
	amounts.LoginPro = envInt64("LOGIN_REWARD_PRO", amounts.LoginPro)
	amounts.RateProUSD = envInt64("RATE_PRO_TO_USD", amounts.RateProUSD)
	return amounts
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
