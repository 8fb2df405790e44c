package main

import (
	"context"
	"fmt"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
)

func (cli *commandLine) addFranchise(nf franchise.NewFranchise) error {
	ctx := context.Background()
	if err := nf.Validate(ctx, cli.validate, cli.svc); err != nil {
		return err
	}
	f, err := cli.svc.Create(ctx, nf)
	if err != nil {
		return err
	}
	fmt.Printf("franchise %q registered: id=%s franchiseId=%s\n", f.Name, f.ID, f.FranchiseID)
	return nil
}

func (cli *commandLine) resetPassword(key, pwd string) error {
	ctx := context.Background()
	f, err := cli.findFranchise(ctx, key)
	if err != nil {
		return err
	}
	if err = f.SetPassword(pwd); err != nil {
		return err
	}
	if _, err = cli.repo.UpdateFranchise(ctx, f); err != nil {
		return err
	}
	return nil
}

func (cli *commandLine) resendCredentials(key string) error {
	ctx := context.Background()
	f, err := cli.findFranchise(ctx, key)
	if err != nil {
		return err
	}
	if _, err = cli.svc.ResendCredentials(ctx, f.ID); err != nil {
		return err
	}
	fmt.Printf("credentials sent to %s\n", f.Email)
	return nil
}

// findFranchise resolves a franchise by its public id or email.
func (cli *commandLine) findFranchise(ctx context.Context, key string) (franchise.Franchise, error) {
	email := core.CleanString(key, true /* lower */)
	fid := core.CleanString(key)

	fs, err := cli.repo.QueryFranchises(ctx, nil, nil)
	if err != nil {
		return franchise.Franchise{}, err
	}
	for _, f := range fs {
		if (fid != "" && f.FranchiseID == fid) || f.Email == email {
			return f, nil
		}
	}
	return franchise.Franchise{}, franchise.ErrNotFound
}
