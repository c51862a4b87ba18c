package main

import (
	"fmt"

	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/infrastructure/hasher"
	"github.com/thanhpk/randstr"
	"github.com/urfave/cli/v2"
)

const defaultSecretLen = 32

var secret = cli.Command{
	Name:  "secret",
	Usage: "generate a random secret and its commitment, or hash a given one",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "secret",
			Usage: "the secret to commit to, a random one is generated if empty",
		},
		&cli.IntFlag{
			Name:  "length",
			Usage: "the length in bytes of the generated secret",
			Value: defaultSecretLen,
		},
		&cli.StringFlag{
			Name:  "hash",
			Usage: "the hash function used by escrowd: sha256 or blake3",
			Value: hasher.Sha256,
		},
	},
	Action: secretAction,
}

func secretAction(ctx *cli.Context) error {
	h, err := hasher.NewHasher(ctx.String("hash"))
	if err != nil {
		return err
	}

	s, err := newSecret(ctx.String("secret"), ctx.Int("length"))
	if err != nil {
		return err
	}

	fmt.Println("secret:", s)
	fmt.Println("secret hash:", domain.CommitSecret(h, s))
	return nil
}

func newSecret(s string, length int) (string, error) {
	if len(s) > 0 {
		return s, nil
	}
	if length <= 0 {
		return "", fmt.Errorf("secret length must be a positive number")
	}
	return randstr.Hex(length), nil
}
