package main

import "github.com/Mdia92/bone-framework-kiroween-edition/cmd/bone/cmd"

func main() {
	cmd.Execute()
}
