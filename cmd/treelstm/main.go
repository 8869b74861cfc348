package main

import "github.com/joshcarp/treelstm"

func main() {
	treelstm.Execute()
}
