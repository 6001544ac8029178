package main

func (cli *commandLine) migrate(command string, args ...string) error {
	if cli.migrator == nil {
		return errNoSQLDatabase
	}
	return cli.migrator(command, args...)
}
