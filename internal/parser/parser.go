// Package parser implements the unified recursive-descent SQL parser
// (C7, spec.md §4.7): it classifies the top-level statement by peeking
// the first significant keyword and dispatches to the matching
// sub-parser, in the structural style of the teacher's
// internal/parser/mysql/parser.go (a Parser struct holding a token
// slice and position, with expect/peek/advance helpers).
package parser

import (
	"strconv"
	"strings"

	"reldb/internal/ast"
	"reldb/internal/errs"
	"reldb/internal/lexer"
	"reldb/internal/token"
	"reldb/internal/value"
)

// Parser consumes a token stream and builds an ast.Stmt.
type Parser struct {
	toks []token.Token
	pos  int
}

// Parse lexes and parses a single SQL statement (the trailing semicolon,
// if any, is optional and consumed).
func Parse(sql string) (*ast.Stmt, error) {
	toks, err := lexer.All(sql)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseStatement()
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) pos2Err() errs.Position {
	t := p.cur()
	return errs.Position{Line: t.Pos.Line, Column: t.Pos.Column}
}

func (p *Parser) expectKeyword(kw string) (token.Token, error) {
	t := p.cur()
	if t.Kind != token.Keyword || t.Value != kw {
		return token.Token{}, &errs.SyntaxError{Expected: kw, Found: describeTok(t), Pos: p.pos2Err()}
	}
	return p.advance(), nil
}

func (p *Parser) expectKind(k token.Kind, what string) (token.Token, error) {
	t := p.cur()
	if t.Kind != k {
		return token.Token{}, &errs.SyntaxError{Expected: what, Found: describeTok(t), Pos: p.pos2Err()}
	}
	return p.advance(), nil
}

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == token.Keyword && t.Value == kw
}

func describeTok(t token.Token) string {
	if t.Kind == token.EOF {
		return "end of input"
	}
	return t.Value
}

func (p *Parser) parseStatement() (*ast.Stmt, error) {
	t := p.cur()
	if t.Kind != token.Keyword {
		return nil, &errs.SyntaxError{Message: "expected statement keyword", Found: describeTok(t), Pos: p.pos2Err()}
	}
	switch t.Value {
	case "SELECT":
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &ast.Stmt{Kind: ast.KindSelect, Class: ast.ClassSelect, Select: sel}, nil
	case "CREATE":
		return p.parseCreate()
	case "DROP":
		return p.parseDrop()
	case "ALTER":
		return p.parseAlter()
	case "INSERT":
		ins, err := p.parseInsert()
		if err != nil {
			return nil, err
		}
		return &ast.Stmt{Kind: ast.KindInsert, Class: ast.ClassDML, Insert: ins}, nil
	case "UPDATE":
		upd, err := p.parseUpdate()
		if err != nil {
			return nil, err
		}
		return &ast.Stmt{Kind: ast.KindUpdate, Class: ast.ClassDML, Update: upd}, nil
	case "DELETE":
		del, err := p.parseDelete()
		if err != nil {
			return nil, err
		}
		return &ast.Stmt{Kind: ast.KindDelete, Class: ast.ClassDML, Delete: del}, nil
	case "BEGIN":
		p.advance()
		return &ast.Stmt{Kind: ast.KindBegin, Class: ast.ClassTxn}, nil
	case "COMMIT":
		p.advance()
		return &ast.Stmt{Kind: ast.KindCommit, Class: ast.ClassTxn}, nil
	case "ROLLBACK":
		p.advance()
		return &ast.Stmt{Kind: ast.KindRollback, Class: ast.ClassTxn}, nil
	default:
		return nil, &errs.SyntaxError{Message: "unrecognized statement", Found: describeTok(t), Pos: p.pos2Err()}
	}
}

func (p *Parser) consumeOptionalSemicolon() {
	if p.cur().Kind == token.Semicolon {
		p.advance()
	}
}

// ---- DDL ----

func (p *Parser) parseCreate() (*ast.Stmt, error) {
	p.advance() // CREATE
	if p.isKeyword("TABLE") {
		p.advance()
		ct, err := p.parseCreateTableBody()
		if err != nil {
			return nil, err
		}
		p.consumeOptionalSemicolon()
		return &ast.Stmt{Kind: ast.KindCreateTable, Class: ast.ClassDDL, CreateTable: ct}, nil
	}
	unique := false
	if p.isKeyword("UNIQUE") {
		unique = true
		p.advance()
	}
	if _, err := p.expectKeyword("INDEX"); err != nil {
		return nil, err
	}
	name, err := p.expectKind(token.Identifier, "index name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.LParen, "("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		c, err := p.expectKind(token.Identifier, "column name")
		if err != nil {
			return nil, err
		}
		cols = append(cols, c.Value)
		if p.cur().Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectKind(token.RParen, ")"); err != nil {
		return nil, err
	}
	p.consumeOptionalSemicolon()
	return &ast.Stmt{Kind: ast.KindCreateIndex, Class: ast.ClassDDL, CreateIndex: &ast.CreateIndexStmt{
		IndexName: name.Value, Table: table.Value, Columns: cols, Unique: unique,
	}}, nil
}

func (p *Parser) parseCreateTableBody() (*ast.CreateTableStmt, error) {
	name, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.LParen, "("); err != nil {
		return nil, err
	}
	var cols []ast.ColumnDef
	seen := map[string]bool{}
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		if seen[strings.ToLower(col.Name)] {
			return nil, errs.NewSemantic(errs.DuplicateColumn, "duplicate column %q in CREATE TABLE %s", col.Name, name.Value)
		}
		seen[strings.ToLower(col.Name)] = true
		cols = append(cols, col)
		if p.cur().Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectKind(token.RParen, ")"); err != nil {
		return nil, err
	}
	return &ast.CreateTableStmt{Table: name.Value, Columns: cols}, nil
}

func (p *Parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.expectKind(token.Identifier, "column name")
	if err != nil {
		return ast.ColumnDef{}, err
	}
	typeTok := p.cur()
	if typeTok.Kind != token.Keyword {
		return ast.ColumnDef{}, &errs.SyntaxError{Expected: "column type", Found: describeTok(typeTok), Pos: p.pos2Err()}
	}
	p.advance()
	col := ast.ColumnDef{Name: name.Value, Type: typeTok.Value}
	if p.cur().Kind == token.LParen {
		p.advance()
		n, err := p.expectKind(token.IntLiteral, "length")
		if err != nil {
			return ast.ColumnDef{}, err
		}
		ln, _ := strconv.Atoi(n.Value)
		col.MaxLength = ln
		// DECIMAL(p,s) - consume optional second argument, scale is not tracked.
		if p.cur().Kind == token.Comma {
			p.advance()
			if _, err := p.expectKind(token.IntLiteral, "scale"); err != nil {
				return ast.ColumnDef{}, err
			}
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return ast.ColumnDef{}, err
		}
	}
	for {
		if p.isKeyword("NOT") {
			p.advance()
			if _, err := p.expectKeyword("NULL"); err != nil {
				return ast.ColumnDef{}, err
			}
			col.NotNull = true
			continue
		}
		if p.isKeyword("PRIMARY") {
			p.advance()
			if _, err := p.expectKeyword("KEY"); err != nil {
				return ast.ColumnDef{}, err
			}
			col.PrimaryKey = true
			col.NotNull = true
			continue
		}
		if p.isKeyword("UNIQUE") {
			p.advance()
			col.Unique = true
			continue
		}
		if p.isKeyword("DEFAULT") {
			p.advance()
			v, err := p.parseLiteralValue()
			if err != nil {
				return ast.ColumnDef{}, err
			}
			col.HasDefault = true
			col.Default = v
			continue
		}
		break
	}
	return col, nil
}

func (p *Parser) parseDrop() (*ast.Stmt, error) {
	p.advance() // DROP
	if _, err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	p.consumeOptionalSemicolon()
	return &ast.Stmt{Kind: ast.KindDropTable, Class: ast.ClassDDL, DropTable: &ast.DropTableStmt{Table: name.Value}}, nil
}

func (p *Parser) parseAlter() (*ast.Stmt, error) {
	p.advance() // ALTER
	if _, err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("ADD"); err != nil {
		return nil, err
	}
	if p.isKeyword("COLUMN") {
		p.advance()
	}
	col, err := p.parseColumnDef()
	if err != nil {
		return nil, err
	}
	p.consumeOptionalSemicolon()
	return &ast.Stmt{Kind: ast.KindAlterTableAdd, Class: ast.ClassDDL, AlterTable: &ast.AlterTableAddStmt{Table: name.Value, Column: col}}, nil
}

// ---- DML ----

func (p *Parser) parseLiteralValue() (value.Value, error) {
	t := p.cur()
	switch t.Kind {
	case token.IntLiteral:
		p.advance()
		n, _ := strconv.ParseInt(t.Value, 10, 64)
		return value.Int(n), nil
	case token.FloatLiteral:
		p.advance()
		f, _ := strconv.ParseFloat(t.Value, 64)
		return value.Flt(f), nil
	case token.StringLiteral:
		p.advance()
		return value.Str(t.Value), nil
	case token.Minus:
		p.advance()
		v, err := p.parseLiteralValue()
		if err != nil {
			return value.Value{}, err
		}
		if v.Kind() == value.Integer {
			return value.Int(-v.Int()), nil
		}
		return value.Flt(-v.Float()), nil
	case token.Keyword:
		switch t.Value {
		case "TRUE":
			p.advance()
			return value.Bool(true), nil
		case "FALSE":
			p.advance()
			return value.Bool(false), nil
		case "NULL":
			p.advance()
			return value.NullValue(), nil
		}
	}
	return value.Value{}, &errs.SyntaxError{Expected: "literal value", Found: describeTok(t), Pos: p.pos2Err()}
}

func (p *Parser) parseInsert() (*ast.InsertStmt, error) {
	p.advance() // INSERT
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.cur().Kind == token.LParen {
		p.advance()
		for {
			c, err := p.expectKind(token.Identifier, "column name")
			if err != nil {
				return nil, err
			}
			cols = append(cols, c.Value)
			if p.cur().Kind == token.Comma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.LParen, "("); err != nil {
		return nil, err
	}
	var vals []value.Value
	for {
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.cur().Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectKind(token.RParen, ")"); err != nil {
		return nil, err
	}
	p.consumeOptionalSemicolon()
	return &ast.InsertStmt{Table: table.Value, Columns: cols, Values: vals}, nil
}

func (p *Parser) parseUpdate() (*ast.UpdateStmt, error) {
	p.advance() // UPDATE
	table, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var assigns []ast.Assignment
	for {
		col, err := p.expectKind(token.Identifier, "column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(token.Eq, "="); err != nil {
			return nil, err
		}
		a := ast.Assignment{Column: col.Value}
		// support "col = col <op> literal" self-referencing update expressions.
		if p.cur().Kind == token.Identifier && p.cur().Value == col.Value {
			p.advance()
			if p.cur().Kind == token.Plus || p.cur().Kind == token.Minus {
				op := "+"
				if p.cur().Kind == token.Minus {
					op = "-"
				}
				p.advance()
				rhs, err := p.parseLiteralValue()
				if err != nil {
					return nil, err
				}
				a.Op = op
				a.Rhs = rhs
			} else {
				return nil, &errs.SyntaxError{Expected: "+ or -", Found: describeTok(p.cur()), Pos: p.pos2Err()}
			}
		} else {
			v, err := p.parseLiteralValue()
			if err != nil {
				return nil, err
			}
			a.Value = v
		}
		assigns = append(assigns, a)
		if p.cur().Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	var where *ast.WhereClause
	if p.isKeyword("WHERE") {
		p.advance()
		w, err := p.parseWhereExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}
	p.consumeOptionalSemicolon()
	return &ast.UpdateStmt{Table: table.Value, Assignments: assigns, Where: where}, nil
}

func (p *Parser) parseDelete() (*ast.DeleteStmt, error) {
	p.advance() // DELETE
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	var where *ast.WhereClause
	if p.isKeyword("WHERE") {
		p.advance()
		w, err := p.parseWhereExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}
	p.consumeOptionalSemicolon()
	return &ast.DeleteStmt{Table: table.Value, Where: where}, nil
}

// ---- SELECT ----

func (p *Parser) parseSelect() (*ast.SelectStmt, error) {
	p.advance() // SELECT
	sel := &ast.SelectStmt{}
	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	sel.Items = items
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	sel.Table = table.Value
	sel.Alias = table.Value
	if p.cur().Kind == token.Identifier {
		sel.Alias = p.advance().Value
	} else if p.isKeyword("AS") {
		p.advance()
		a, err := p.expectKind(token.Identifier, "alias")
		if err != nil {
			return nil, err
		}
		sel.Alias = a.Value
	}

	for p.isJoinStart() {
		j, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		sel.Joins = append(sel.Joins, *j)
	}

	if p.isKeyword("WHERE") {
		p.advance()
		w, err := p.parseWhereExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = w
	}

	if p.isKeyword("GROUP") {
		p.advance()
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		var cols []string
		for {
			c, err := p.expectKind(token.Identifier, "column name")
			if err != nil {
				return nil, err
			}
			cols = append(cols, c.Value)
			if p.cur().Kind == token.Comma {
				p.advance()
				continue
			}
			break
		}
		sel.GroupBy = &ast.GroupByClause{Columns: cols}
	}

	if p.isKeyword("HAVING") {
		p.advance()
		h, err := p.parseHavingExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = h
	}

	if p.isKeyword("ORDER") {
		p.advance()
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		c, err := p.expectKind(token.Identifier, "column name")
		if err != nil {
			return nil, err
		}
		ob := &ast.OrderByClause{Column: c.Value}
		if p.isKeyword("DESC") {
			p.advance()
			ob.Desc = true
		} else if p.isKeyword("ASC") {
			p.advance()
		}
		sel.OrderBy = ob
	}

	if p.isKeyword("LIMIT") {
		p.advance()
		n, err := p.expectKind(token.IntLiteral, "limit count")
		if err != nil {
			return nil, err
		}
		limNum, _ := strconv.ParseInt(n.Value, 10, 64)
		lim := &ast.LimitClause{Limit: limNum}
		if p.isKeyword("OFFSET") {
			p.advance()
			o, err := p.expectKind(token.IntLiteral, "offset count")
			if err != nil {
				return nil, err
			}
			offNum, _ := strconv.ParseInt(o.Value, 10, 64)
			lim.Offset = offNum
		}
		sel.Limit = lim
	}

	p.consumeOptionalSemicolon()
	return sel, nil
}

func (p *Parser) parseSelectList() ([]ast.SelectItem, error) {
	var items []ast.SelectItem
	for {
		if p.cur().Kind == token.Star {
			p.advance()
			items = append(items, ast.SelectItem{Star: true})
		} else if p.cur().Kind == token.Keyword && isAggregateFunc(p.cur().Value) {
			agg, err := p.parseAggregateCall()
			if err != nil {
				return nil, err
			}
			items = append(items, ast.SelectItem{Aggregate: agg, Alias: agg.Alias})
		} else {
			id, err := p.expectKind(token.Identifier, "column name")
			if err != nil {
				return nil, err
			}
			it := ast.SelectItem{Column: id.Value}
			if p.cur().Kind == token.Dot {
				p.advance()
				if p.cur().Kind == token.Star {
					p.advance()
					it = ast.SelectItem{Star: true, Qualifier: id.Value}
				} else {
					col, err := p.expectKind(token.Identifier, "column name")
					if err != nil {
						return nil, err
					}
					it.Qualifier = id.Value
					it.Column = col.Value
				}
			}
			if p.isKeyword("AS") {
				p.advance()
				a, err := p.expectKind(token.Identifier, "alias")
				if err != nil {
					return nil, err
				}
				it.Alias = a.Value
			} else if p.cur().Kind == token.Identifier {
				it.Alias = p.advance().Value
			}
			items = append(items, it)
		}
		if p.cur().Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func isAggregateFunc(kw string) bool {
	switch kw {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return true
	}
	return false
}

func (p *Parser) parseAggregateCall() (*ast.AggregateCall, error) {
	fn := p.advance().Value
	if _, err := p.expectKind(token.LParen, "("); err != nil {
		return nil, err
	}
	col := "*"
	if p.cur().Kind == token.Star {
		p.advance()
	} else {
		id, err := p.expectKind(token.Identifier, "column name")
		if err != nil {
			return nil, err
		}
		col = id.Value
	}
	if _, err := p.expectKind(token.RParen, ")"); err != nil {
		return nil, err
	}
	call := &ast.AggregateCall{Func: fn, Column: col}
	if p.isKeyword("AS") {
		p.advance()
		a, err := p.expectKind(token.Identifier, "alias")
		if err != nil {
			return nil, err
		}
		call.Alias = a.Value
	} else if p.cur().Kind == token.Identifier {
		call.Alias = p.advance().Value
	}
	return call, nil
}

func (p *Parser) isJoinStart() bool {
	t := p.cur()
	if t.Kind != token.Keyword {
		return false
	}
	switch t.Value {
	case "JOIN", "INNER", "LEFT", "RIGHT", "FULL":
		return true
	}
	return false
}

func (p *Parser) parseJoin() (*ast.JoinClause, error) {
	kind := ast.InnerJoin
	switch p.cur().Value {
	case "INNER":
		p.advance()
	case "LEFT":
		kind = ast.LeftJoin
		p.advance()
	case "RIGHT":
		kind = ast.RightJoin
		p.advance()
	case "FULL":
		kind = ast.FullJoin
		p.advance()
	}
	if p.isKeyword("OUTER") {
		p.advance()
	}
	if _, err := p.expectKeyword("JOIN"); err != nil {
		return nil, err
	}
	table, err := p.expectKind(token.Identifier, "table name")
	if err != nil {
		return nil, err
	}
	alias := table.Value
	if p.cur().Kind == token.Identifier {
		alias = p.advance().Value
	}
	if _, err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	lq, lc, err := p.parseQualifiedColumn()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(token.Eq, "="); err != nil {
		return nil, err
	}
	rq, rc, err := p.parseQualifiedColumn()
	if err != nil {
		return nil, err
	}
	return &ast.JoinClause{
		Kind: kind, Table: table.Value, Alias: alias,
		LeftQualifier: lq, LeftColumn: lc, RightQualifier: rq, RightColumn: rc,
	}, nil
}

func (p *Parser) parseQualifiedColumn() (string, string, error) {
	id, err := p.expectKind(token.Identifier, "column reference")
	if err != nil {
		return "", "", err
	}
	if p.cur().Kind == token.Dot {
		p.advance()
		col, err := p.expectKind(token.Identifier, "column name")
		if err != nil {
			return "", "", err
		}
		return id.Value, col.Value, nil
	}
	return "", id.Value, nil
}

// parseWhereExpr parses a boolean expression of comparisons joined by
// AND/OR, with AND binding tighter (spec.md §4.7).
func (p *Parser) parseWhereExpr() (*ast.WhereClause, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.WhereClause{Op: ast.LogicOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (*ast.WhereClause, error) {
	left, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		left = &ast.WhereClause{Op: ast.LogicAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseCondition() (*ast.WhereClause, error) {
	if p.cur().Kind == token.LParen {
		p.advance()
		w, err := p.parseWhereExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return nil, err
		}
		return w, nil
	}
	qualifier, col, err := p.parseQualifiedColumn()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	lit, err := p.parseLiteralValue()
	if err != nil {
		return nil, err
	}
	return &ast.WhereClause{Op: ast.LogicLeaf, Leaf: &ast.Condition{Qualifier: qualifier, Column: col, Op: op, Literal: lit}}, nil
}

func (p *Parser) parseCompareOp() (ast.CompareOp, error) {
	t := p.cur()
	switch t.Kind {
	case token.Eq:
		p.advance()
		return ast.OpEQ, nil
	case token.Neq:
		p.advance()
		return ast.OpNE, nil
	case token.Lt:
		p.advance()
		return ast.OpLT, nil
	case token.Le:
		p.advance()
		return ast.OpLE, nil
	case token.Gt:
		p.advance()
		return ast.OpGT, nil
	case token.Ge:
		p.advance()
		return ast.OpGE, nil
	}
	return "", &errs.SyntaxError{Expected: "comparison operator", Found: describeTok(t), Pos: p.pos2Err()}
}

// parseHavingExpr parses a simplified HAVING predicate: agg(col) op literal,
// optionally chained with AND/OR (spec.md §4.10).
func (p *Parser) parseHavingExpr() (*ast.WhereClause, error) {
	left, err := p.parseHavingAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseHavingAndExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.WhereClause{Op: ast.LogicOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseHavingAndExpr() (*ast.WhereClause, error) {
	left, err := p.parseHavingCondition()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseHavingCondition()
		if err != nil {
			return nil, err
		}
		left = &ast.WhereClause{Op: ast.LogicAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseHavingCondition() (*ast.WhereClause, error) {
	if p.cur().Kind == token.Keyword && isAggregateFunc(p.cur().Value) {
		fn := p.advance().Value
		if _, err := p.expectKind(token.LParen, "("); err != nil {
			return nil, err
		}
		col := "*"
		if p.cur().Kind == token.Star {
			p.advance()
		} else {
			id, err := p.expectKind(token.Identifier, "column name")
			if err != nil {
				return nil, err
			}
			col = id.Value
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return nil, err
		}
		op, err := p.parseCompareOp()
		if err != nil {
			return nil, err
		}
		lit, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		return &ast.WhereClause{Op: ast.LogicLeaf, Leaf: &ast.Condition{Aggregate: fn, AggColumn: col, Op: op, Literal: lit}}, nil
	}
	return p.parseCondition()
}
