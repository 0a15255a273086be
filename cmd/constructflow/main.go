// @title        ConstructFlow API
// @version      1.0
// @description  Согласование задач: сотрудник → директор → администратор.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
