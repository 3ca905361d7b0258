package main

import "github.com/urfave/cli/v3"

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "nickname",
			Aliases:  []string{"n"},
			Usage:    "Account nickname",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "password",
			Aliases:  []string{"p"},
			Usage:    "Account password",
			Required: true,
			Sources:  cli.EnvVars("OMOKPANG_PASSWORD"),
		},
	}
}

func signupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "signup",
		Usage:  "Create an account",
		Flags:  credentialFlags(),
		Action: r.Signup,
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Check credentials and show the account",
		Flags:  credentialFlags(),
		Action: r.Login,
	}
}

func rankingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ranking",
		Aliases: []string{"rank"},
		Usage:   "Show the leaderboard",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of entries to show",
				Value: 10,
			},
		},
		Action: r.Ranking,
	}
}

func cardsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cards",
		Usage: "Card catalog and rerolls",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every card with its draw weight",
				Action: r.Cards,
			},
			{
				Name:  "reroll",
				Usage: "Spend points on a new random card",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "nickname",
						Aliases:  []string{"n"},
						Usage:    "Account nickname",
						Required: true,
					},
				},
				Action: r.Reroll,
			},
		},
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Queue for a match and play from stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "nickname",
				Aliases:  []string{"n"},
				Usage:    "Registered nickname to play as",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Game mode: 1v1, 2v2 or 1v1v1v1",
				Value:   "1v1",
			},
		},
		Action: r.Play,
	}
}
