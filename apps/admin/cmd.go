package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/skedutech/portal/core/franchise"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	repo     franchise.Repository
	svc      franchise.Service
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...]                     - run a goose migration command (up, down, status...)")
	fmt.Println("  addfranchise [FLAGS]                          - register a new franchise (pending state)")
	fmt.Println("  resetpassword -franchise FRANCHISE_ID|EMAIL   - reset a franchise's password; prompted next")
	fmt.Println("  resendcredentials -franchise FRANCHISE_ID|EMAIL - mint a fresh password and email the credentials")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addCmd := flag.NewFlagSet("addfranchise", flag.ExitOnError)
	addName := addCmd.String("name", "", "The franchise (centre) name.")
	addOwner := addCmd.String("owner", "", "The owner's full name.")
	addDesignation := addCmd.String("designation", "Owner", "The contact person's designation.")
	addDOB := addCmd.String("dob", "", "The owner's date of birth (YYYY-MM-DD).")
	addEmail := addCmd.String("email", "", "The franchise's contact email.")
	addMobile := addCmd.String("mobile", "", "The franchise's 10-digit mobile number.")
	addAddress := addCmd.String("address", "", "The centre's street address.")
	addState := addCmd.String("state", "", "The centre's state.")
	addCity := addCmd.String("city", "", "The centre's city.")
	addCountry := addCmd.String("country", "", "The centre's country. Defaults to the configured country.")
	addPincode := addCmd.String("pincode", "", "The centre's 6-digit pincode.")
	addPlan := addCmd.Int("plan", 365, "The plan validity in days (90, 180 or 365).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordKey := resetPasswordCmd.String("franchise", "", "The franchise's ID or email. The password will be prompted next.")

	resendCmd := flag.NewFlagSet("resendcredentials", flag.ExitOnError)
	resendKey := resendCmd.String("franchise", "", "The franchise's ID or email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addfranchise":
		if err := addCmd.Parse(args[2:]); err != nil {
			return err
		}
		nf := franchise.NewFranchise{
			Name:             *addName,
			Owner:            *addOwner,
			Designation:      *addDesignation,
			DateOfBirth:      *addDOB,
			Email:            *addEmail,
			Mobile:           *addMobile,
			Address:          *addAddress,
			State:            *addState,
			City:             *addCity,
			Country:          *addCountry,
			Pincode:          *addPincode,
			PlanValidityDays: *addPlan,
		}
		return cli.addFranchise(nf)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordKey == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordKey, string(pwd))
	case "resendcredentials":
		if err := resendCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resendKey == "" {
			resendCmd.Usage()
			return errHelp
		}
		return cli.resendCredentials(*resendKey)
	default:
		cli.printUsage()
		return errHelp
	}
}
