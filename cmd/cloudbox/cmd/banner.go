package cmd

import (
	"fmt"
	"io"
)

const banner = `
       _                 _ _
   ___| | ___  _   _  __| | |__   _____  __
  / __| |/ _ \| | | |/ _` + "`" + ` | '_ \ / _ \ \/ /
 | (__| | (_) | |_| | (_| | |_) | (_) >  <
  \___|_|\___/ \__,_|\__,_|_.__/ \___/_/\_\
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Authenticated File Storage - Version %s\x1b[0m\n\n", Version)
}
