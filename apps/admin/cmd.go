package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/bitdevs/estudos/core/activity"
	"github.com/bitdevs/estudos/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc     *user.Service
	actSvc     *activity.Service
	classifier activity.Classifier
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  bootstrap - create the default admin account if it is missing")
	fmt.Fprintln(cli.out, "  adduser -role ROLE -username USERNAME -name NAME [-email ...] - register an account")
	fmt.Fprintln(cli.out, "  resetpassword -role ROLE -username USERNAME - reset an account's password")
	fmt.Fprintln(cli.out, "  migrate-fields [-role ROLE] - rewrap personal fields into the strong scheme")
	fmt.Fprintln(cli.out, "  create-activity -title TITLE -deadline YYYY-MM-DD [-turma ...] - create an activity")
	fmt.Fprintln(cli.out, "  semester -date YYYY-MM-DD - print the semester a date belongs to")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// promptPassword reads a password without echoing it; an empty answer prints the usage of fs.
func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "bootstrap":
		return cli.bootstrap()

	case "adduser":
		cmd := cli.newFlagSet("adduser")
		nu := user.NewUser{}
		cmd.StringVar((*string)(&nu.Role), "role", "", "Aluno, Professor or Administrativo.")
		cmd.StringVar(&nu.Username, "username", "", "The account's username. The password will be prompted next.")
		cmd.StringVar(&nu.Name, "name", "", "Full name.")
		cmd.StringVar(&nu.Age, "age", "", "Age.")
		cmd.StringVar(&nu.Email, "email", "", "Email address.")
		cmd.StringVar(&nu.CPF, "cpf", "", "CPF.")
		cmd.StringVar(&nu.Curso, "curso", "", "Course.")
		cmd.StringVar(&nu.Turma, "turma", "", "Class.")
		cmd.StringVar(&nu.Semestre, "semestre", "", "Semester.")
		cmd.StringVar(&nu.Periodo, "periodo", "", "Period.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if nu.Role == "" || nu.Username == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd)
		if err != nil {
			return err
		}
		nu.Password = pwd
		return cli.addUser(nu)

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		role := cmd.String("role", "", "Aluno, Professor or Administrativo.")
		uname := cmd.String("username", "", "The account's username. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *role == "" || *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(user.Role(*role), *uname, pwd)

	case "migrate-fields":
		cmd := cli.newFlagSet("migrate-fields")
		role := cmd.String("role", "", "Only migrate this role's collection (all when empty).")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.migrateFields(user.Role(*role))

	case "create-activity":
		cmd := cli.newFlagSet("create-activity")
		na := activity.NewActivity{}
		cmd.StringVar(&na.Title, "title", "", "Title.")
		cmd.StringVar(&na.Description, "description", "", "Description.")
		cmd.StringVar(&na.Deadline, "deadline", "", "Deadline, YYYY-MM-DD.")
		cmd.StringVar(&na.Curso, "curso", "", "Target course.")
		cmd.StringVar(&na.Turma, "turma", "", "Target class.")
		cmd.StringVar(&na.Semestre, "semestre", "", "Target semester.")
		cmd.StringVar(&na.Periodo, "periodo", "", "Target period.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if na.Title == "" || na.Deadline == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.createActivity(na)

	case "semester":
		cmd := cli.newFlagSet("semester")
		date := cmd.String("date", "", "Date, YYYY-MM-DD.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *date == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.semester(*date)

	default:
		cli.printUsage()
		return errHelp
	}
}
