// Package account implements the player account services.
//
// Services:
//   - AuthService: signup and login with bcrypt password hashes
//   - RankingService: leaderboard and profiles
//   - PointService: point balance and conditional spending
//   - ResultService: records finished game results
//   - CardService: card dealing and paid rerolls
package account
