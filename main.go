package main

import "attendance-kiosk/cmd"

func main() {
	cmd.Execute()
}
