package main

import (
	"net/http"

	"github.com/urfave/cli/v2"
)

var (
	status = cli.Command{
		Name:   "status",
		Usage:  "tell whether the daemon is paused",
		Action: statusAction,
	}
	pause = cli.Command{
		Name:   "pause",
		Usage:  "prevent escrows from being created or transitioned, owner only",
		Action: pauseAction,
	}
	unpause = cli.Command{
		Name:   "unpause",
		Usage:  "resume the daemon, owner only",
		Action: unpauseAction,
	}
)

func statusAction(ctx *cli.Context) error {
	return adminAction(http.MethodGet, "/v1/admin/status")
}

func pauseAction(ctx *cli.Context) error {
	return adminAction(http.MethodPost, "/v1/admin/pause")
}

func unpauseAction(ctx *cli.Context) error {
	return adminAction(http.MethodPost, "/v1/admin/unpause")
}

func adminAction(method, path string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	resp, err := client.do(method, path, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}
