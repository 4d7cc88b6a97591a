package cmd

import (
	_ "polar-keeper/cmd/install"
	_ "polar-keeper/cmd/root"
	_ "polar-keeper/cmd/server"
	_ "polar-keeper/cmd/service"
)
