package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"golang.org/x/term"

	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp          = errors.New("help provided")
	errNoSQLDatabase = errors.New("migrations require a SQL database engine")
	errPwdMismatch   = errors.New("passwords do not match")
)

type commandLine struct {
	usrSvc   user.Service
	restoSvc restaurant.Service
	validate *validator.Validate
	migrator func(command string, args ...string) error // nil without a SQL database
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                      - run goose migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL     - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL      - reset user's password")
	fmt.Fprintln(cli.out, "  seed -file PATH                             - load users, restaurants, ratings and sponsorships from a YAML file")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse maps -h to errHelp
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

// checkArgs prints the failed checks and the command usage.
func (cli *commandLine) checkArgs(fs *flag.FlagSet, checkers ...vala.Checker) error {
	if err := vala.BeginValidation().Validate(checkers...).Check(); err != nil {
		fmt.Fprintln(cli.out, err)
		fs.Usage()
		return errHelp
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2], args[3:]...)

	case "adduser":
		cmd := cli.newFlagSet("adduser")
		uname := cmd.String("username", "", "The user's username. The password will be prompted next.")
		email := cmd.String("email", "", "The user's email.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := cli.checkArgs(cmd,
			vala.StringNotEmpty(*uname, "username"),
			vala.StringNotEmpty(*email, "email"),
		); err != nil {
			return err
		}
		pwd, err := cli.promptNewPassword(cmd)
		if err != nil {
			return err
		}
		return cli.addUser(*uname, *email, pwd)

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		uname := cmd.String("username", "", "The user's username or email. The password will be prompted next.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := cli.checkArgs(cmd, vala.StringNotEmpty(*uname, "username")); err != nil {
			return err
		}
		pwd, err := cli.promptNewPassword(cmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*uname, pwd)

	case "seed":
		cmd := cli.newFlagSet("seed")
		file := cmd.String("file", "", "Path to the YAML seed file.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if err := cli.checkArgs(cmd, vala.StringNotEmpty(*file, "file")); err != nil {
			return err
		}
		return cli.seed(*file)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// promptNewPassword asks for a password and its confirmation.
func (cli *commandLine) promptNewPassword(cmd *flag.FlagSet) (string, error) {
	pwd, err := cli.promptPassword("Enter password:")
	if err != nil {
		return "", err
	}
	if pwd == "" {
		cmd.Usage()
		return "", errHelp
	}
	confPwd, err := cli.promptPassword("Confirm password:")
	if err != nil {
		return "", err
	}
	if pwd != confPwd {
		return "", errPwdMismatch
	}
	return pwd, nil
}
